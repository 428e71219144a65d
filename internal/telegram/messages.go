package telegram

import (
	"fmt"
	"time"

	"github.com/bassamhamid/grammarbot/internal/governance/quota"
	"github.com/bassamhamid/grammarbot/internal/stats"
)

const (
	msgChooseService   = "🔍 اختر الخدمة المطلوبة:"
	msgProcessing      = "⏳ جاري المعالجة..."
	msgTextNotFound    = "❌ عذراً، لم يتم العثور على النص المطلوب."
	msgUnknownAction   = "⚠️ أمر غير معروف"
	msgRequestsUsedUp  = "⏳ لقد استهلكت جميع طلباتك اليومية."
	msgProcessingError = "❌ حدث خطأ أثناء معالجة طلبك. يرجى المحاولة لاحقاً."
	msgInternalError   = "⚠️ حدث خطأ غير متوقع. يرجى المحاولة لاحقاً."

	msgSetAPIUsage = "📌 لاستخدام API الخاص بك:\n" +
		"1. احصل على مفتاح API من موقع openrouter.ai\n" +
		"2. أرسل الأمر:\n" +
		"/setapi your_api_key_here"
	msgInvalidAPIKey    = "❌ مفتاح API غير صالح!"
	msgSetAPIError      = "⚠️ حدث خطأ أثناء معالجة API الخاص بك."
	msgAPIDeactivated   = "✅ تم إلغاء تفعيل API الخاص بك."
	msgNoAPIActive      = "⚠️ لم يكن لديك API مفعل."
	msgUnsetAPIError    = "⚠️ حدث خطأ أثناء إلغاء التفعيل."
	msgStatsUnavailable = "⚠️ تعذر جلب الإحصائيات حالياً."

	btnCorrect         = "🛠 تصحيح نحوي"
	btnRewrite         = "🔄 إعادة صياغة"
	btnJoinChannel     = "انضم للقناة"
	btnCheckSubscribed = "تم الاشتراك ✅"
)

func hoursLeft(d time.Duration) int {
	return int(d / time.Hour)
}

func msgSubscribe(link string) string {
	return "⏳ يرجى الاشتراك في القناة أولاً:\n" + link
}

func msgOverCharLimit(limit, got int) string {
	return fmt.Sprintf("⚠️ عذراً، الحد الأقصى المسموح به هو %d حرفاً.\nعدد أحرف نصك: %d", limit, got)
}

func msgOverRequestLimit(left time.Duration) string {
	return fmt.Sprintf("⏳ لقد استهلكت جميع طلباتك اليومية.\nسيتم تجديد الطلبات بعد: %d ساعة", hoursLeft(left))
}

func msgWelcome(st *quota.Status, now time.Time) string {
	return fmt.Sprintf("مرحباً بك في بوت التصحيح النحوي وإعادة الصياغة!\n\n"+
		"📝 أرسل لي أي نص وسأقدم لك:\n"+
		"- تصحيحاً نحوياً دقيقاً\n"+
		"- إعادة صياغة محترفة\n\n"+
		"⚡ المتبقي من طلباتك اليوم: %d/%d\n"+
		"⏳ يتم تجديد الطلبات بعد: %d ساعة\n\n"+
		"📌 ملاحظة: الحد الأقصى للنص %d حرفاً",
		st.Remaining, st.RequestLimit, hoursLeft(st.ResetAt.Sub(now)), st.CharLimit)
}

func msgResult(result string, st *quota.Status) string {
	if st == nil {
		return "✅ النتيجة:\n\n" + result
	}
	return fmt.Sprintf("✅ النتيجة:\n\n%s\n\n📊 المتبقي من طلباتك: %d/%d", result, st.Remaining, st.RequestLimit)
}

func msgAPIActivated(p quota.Policy) string {
	return fmt.Sprintf("✅ تم تفعيل API الخاص بنجاح!\n"+
		"📊 الآن لديك %d طلباً يومياً\n"+
		"📝 وحد أقصى %d حرفاً للنص", p.RequestLimit, p.CharLimit)
}

func msgStats(s *stats.Summary) string {
	return fmt.Sprintf("📊 إحصائيات البوت:\n\n"+
		"👥 إجمالي المستخدمين: %d\n"+
		"🟢 نشطين اليوم: %d\n"+
		"⭐ مستخدمين مميزين: %d\n"+
		"⛔ مستخدمين محظورين: %d\n"+
		"📨 طلبات اليوم: %d\n"+
		"📈 إجمالي الطلبات: %d",
		s.TotalUsers, s.ActiveToday, s.PremiumUsers, s.BannedUsers, s.DailyRequests, s.TotalRequests)
}
