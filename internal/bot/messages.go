package bot

import "fmt"

// User-visible reply texts, keyed by message id then language. Persian is the
// second-largest user base of this bot; every other language falls back to
// English.
var texts = map[string]map[string]string{
	"processing": {
		"en": "Processing…",
		"fa": "در حال پردازش…",
	},
	"empty_text": {
		"en": "Nothing to say — send some text after the command.",
		"fa": "متنی برای تبدیل وجود ندارد. بعد از دستور متن بفرستید.",
	},
	"tts_failed": {
		"en": "Speech synthesis failed, please try again later.",
		"fa": "تبدیل متن به گفتار ناموفق بود. لطفاً بعداً دوباره تلاش کنید.",
	},
	"engine_not_found": {
		"en": "No engine can handle this request.",
		"fa": "هیچ موتوری نمی‌تواند این درخواست را پردازش کند.",
	},
	"rate_limited": {
		"en": "Too many requests — try again in %s.",
		"fa": "درخواست‌های زیادی فرستاده‌اید. %s دیگر دوباره تلاش کنید.",
	},
	"engine_selected": {
		"en": "Engine %s is now preferred for %s.",
		"fa": "موتور %s اکنون برای %s در اولویت است.",
	},
	"setting_updated": {
		"en": "Setting %s is now %s.",
		"fa": "تنظیم %s اکنون %s است.",
	},
	"cache_cleared": {
		"en": "Cache cleared.",
		"fa": "حافظهٔ نهان پاک شد.",
	},
	"stats_reset": {
		"en": "Statistics reset.",
		"fa": "آمار بازنشانی شد.",
	},
	"restarting": {
		"en": "Restarting transport…",
		"fa": "در حال راه‌اندازی مجدد…",
	},
	"shutting_down": {
		"en": "Shutting down.",
		"fa": "در حال خاموش شدن.",
	},
}

// text returns the message for id in lang, falling back to English.
func text(id, lang string) string {
	byLang, ok := texts[id]
	if !ok {
		return id
	}
	if msg, ok := byLang[lang]; ok {
		return msg
	}
	return byLang["en"]
}

// textf is text with formatting arguments.
func textf(id, lang string, args ...any) string {
	return fmt.Sprintf(text(id, lang), args...)
}
