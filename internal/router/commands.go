package router

import (
	"strings"

	kit "deskbot/internal/transport"
)

// Canned command and keyword replies. Like the notification texts these
// are product copy, not formatting templates.
const (
	rulesMessage = "📜 *Advanced Insurance Solutions Telegram Rules*\n\n" +
		"‼️ IF THE CHANGE WAS NOT CONFIRMED OVER EMAIL, IT DID NOT HAPPEN.\n" +
		"⏳ Please allow 10–15 minutes for a response.\n\n" +
		"🔹 Telegram is for communication only. Policy changes must be confirmed by email.\n\n" +
		"📌 *Guidelines:*\n" +
		"1. All COI requests must be emailed to coi@myaisagency.com\n" +
		"2. No editing of posts\n" +
		"3. Do not reply to old posts, Kindly resend the request instead\n" +
		"4. Don’t send photos of VINs, type Year, Make, and VIN\n" +
		"_Use this format for policy changes:_\n" +
		"• Remove VIN: 4V4NC9TH5KN216424\n" +
		"• Add VIN: 1FUJHHDR3LLLH8454\n" +
		"• Remove driver: Phillip Moore\n" +
		"• Add driver: RUBENS ESTIME\n" +
		"5. If your policy requires MVR, attach it. If not, we’ll order one and charge $30\n" +
		"6. Send CDL with driver’s name clearly\n" +
		"7. We don’t work weekends, resend requests on Monday\n" +
		"8. Physical Damage coverage is not automatically added\n" +
		"9. We accept changes Mon–Fri, 9:00 AM–4:30 PM (4:00 PM Friday)\n" +
		"10. No change is valid unless confirmed by email"

	signMessage = "📬 Please check your email, we’ve sent your documents for **e-signature**.\n" +
		"Kindly review and sign at your earliest convenience. If you have any questions, reply here and we’ll help. " +
		"Thank you! ✍️😊"

	emailsMessage = "📧 *PLEASE USE THE FOLLOWING EMAIL TO GET YOUR REQUEST PROCESSED ASAP.*\n\n" +
		"• coi@myaisagency.com – For all CERTIFICATES requests please send your request\n" +
		"• Info@myaisagency.com – For general Questions and Binding\n" +
		"• Endorsements@myaisagency.com – For policy CHANGES / QUOTES / DRIVER & TRUCK LIST on an existing policy\n" +
		"• Claims@myaisagency.com – For all CLAIMS related questions and requotes"

	ltMessage = "📄 Please send us the Lease Termination to proceed with removal. This is required."

	apdInfoMessage = "📝 Please send the following details to Pavel@myaisagency.com:\n" +
		"- Corporation name\n" +
		"- Phone number\n" +
		"- Email address\n" +
		"- CDLs\n" +
		"- Truck VINs with values\n\n" +
		"✅ Kindly include everything in one email."

	mvrMessage = "📋 Please send us MVRs for the drivers you'd like to add to the policy.\n\n" +
		"If you’d like us to order the MVR:\n" +
		"🛠️ Send all necessary driver info\n" +
		"💵 Note: $30 fee applies per MVR\n" +
		"🧾 PA drivers must include the last 4 digits of their SSN"

	coiReminderMessage = "📩 For Certificate of Insurance (COI) or certificate requests, please email us at: info@myaisagency.com\n\n" +
		"📬 Kindly include:\n" +
		"• COI holder’s name\n" +
		"• Complete mailing address\n" +
		"• Any special wording or instructions\n" +
		"• The email address where we should send the certificate\n\n" +
		"This helps us process your request securely and efficiently. Thank you!"

	noTranscriptMessage = "No transcript available."
)

// cannedCommands maps simple informational commands to their reply. These
// replies count as a staff touch on the chat.
var cannedCommands = map[string]struct {
	text      string
	parseMode string
}{
	"rules":   {rulesMessage, kit.ParseModeMarkdown},
	"lt":      {ltMessage, ""},
	"apdinfo": {apdInfoMessage, ""},
	"mvr":     {mvrMessage, ""},
	"sign":    {signMessage, ""},
	"emails":  {emailsMessage, kit.ParseModeMarkdown},
}

// parseCommand extracts the command name from "/cmd@BotName args...".
// Returns "" when the text is not a command.
func parseCommand(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	cmd := strings.Fields(text[1:])
	if len(cmd) == 0 {
		return ""
	}
	name := strings.ToLower(cmd[0])
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	return name
}

// mentionsCertificate reports whether a customer message looks like a COI
// request.
func mentionsCertificate(text string) bool {
	t := strings.ToLower(text)
	return strings.Contains(t, "coi") || strings.Contains(t, "certificate")
}

var simpleGreetings = map[string]struct{}{
	"hi": {}, "hello": {}, "hey": {}, "yo": {},
	"good morning": {}, "good evening": {}, "good afternoon": {},
}

// isSimpleHello matches bare greetings that deserve an immediate weekend
// notice instead of a debounced one.
func isSimpleHello(text string) bool {
	_, ok := simpleGreetings[strings.ToLower(strings.TrimSpace(text))]
	return ok
}
