package respond


// Canned customer-facing texts. Wording is part of the product surface;
// change with care.
const (
	closedMessage = "⏰ Our agency is currently closed.\n\n" +
		"Business Hours:\n" +
		"🕘 Monday to Friday: 9:00 AM – 5:00 PM\n" +
		"🛑 Saturday & Sunday: Closed\n\n" +
		"⚠️ Your endorsement request was not processed.\n" +
		"Please reach out during business hours so it wont be overlooked. Thank you!"

	afterCutoffMessage = "⚠️ Sorry, your endorsement was received outside the cutoff period.\n\n" +
		"It will be processed the next business day. Thank you for your understanding!"

	weekendMessage = "Thank you for reaching out. 😉\n\n" +
		"🔒 We’re currently closed for the weekend (Saturday & Sunday). Our office will resume regular hours on Monday at 9:00 a.m.\n\n" +
		"⚠️ Please note that your request was not processed, and we kindly ask that you resend it Monday morning to ensure it’s handled promptly.\n\n" +
		"Thank you for your understanding! 🤗"

	lunchMessage = "🍽️ Our team is currently on lunch break (12:30 PM – 1:30 PM CT).\n\n" +
		"We’ll respond once we’re back. To make sure we don’t miss anything, feel free to email us too.\n" +
		"📧 info@myaisagency.com"

	// LastCallMessage is the daily cutoff broadcast text.
	LastCallMessage = "📢 *Last Call for Changes!*\n\n" +
		"Please submit any policy changes before our cut-off time:\n" +
		"🗓️ Weekdays: 4:30 PM\n\n" +
		"Changes after this time will be processed the next business day."
)

// MessageFor resolves the outbound text and parse mode for a kind. The
// parse mode matches transport.SendOptions.ParseMode; empty means plain.
func MessageFor(k Kind) (text, parseMode string) {
	switch k {
	case KindBeforeOpen, KindAfterClose:
		return closedMessage, ""
	case KindWeekend:
		return weekendMessage, ""
	case KindLunch:
		return lunchMessage, ""
	case KindApproachingCutoff:
		return afterCutoffMessage, ""
	default:
		return "", ""
	}
}
