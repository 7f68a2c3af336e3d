package transcribe

import (
	"strings"
)

func freeformPrompt() string {
	return "You are a transcription engine for a Vietnamese small-business sales ledger.\n\n" +
		"Task:\n" +
		"- Transcribe the attached audio exactly as spoken.\n" +
		"- Keep the original language (usually Vietnamese) with correct diacritics.\n" +
		"- Return ONLY the transcript text. No quotes, no labels, no commentary.\n"
}

// standardizedPrompt asks for a single clean value for one ledger field.
func standardizedPrompt(fieldLabel string) string {
	var b strings.Builder
	b.WriteString("You are a dictation assistant filling in ONE field of a Vietnamese household-business sales ledger.\n\n")
	b.WriteString("Field: \"" + fieldLabel + "\"\n\n")
	b.WriteString("Rules:\n")
	b.WriteString("1. Transcribe the attached audio and output only the value for this field.\n")
	b.WriteString("2. Remove filler words, hesitations and phrases like \"điền là\", \"ghi là\".\n")
	b.WriteString("3. Tax identification numbers (mã số thuế): digits and '-' only.\n")
	b.WriteString("4. Dates: format as dd/mm/yyyy.\n")
	b.WriteString("5. Money amounts: a plain integer in VND, digits only (\"5 triệu\" -> 5000000).\n")
	b.WriteString("6. Names and addresses: proper capitalization with diacritics.\n")
	b.WriteString("7. Return a single line. No quotes, no explanation.\n")
	return b.String()
}

// parseTransactionPrompt asks for a strict JSON object. today anchors
// relative dates such as "hôm nay" or "hôm qua".
func parseTransactionPrompt(today string) string {
	return "You extract one sales transaction from a spoken Vietnamese sentence.\n\n" +
		"Today's date is " + today + " (dd/mm/yyyy).\n\n" +
		"Output STRICT JSON only: a single object with these fields:\n" +
		"- \"date\": string \"dd/mm/yyyy\" or null if no date was mentioned\n" +
		"- \"description\": short description of what was sold, or null\n" +
		"- \"amount\": integer amount in VND, or null if no amount was mentioned\n\n" +
		"Rules:\n" +
		"- Resolve relative dates (\"hôm nay\", \"hôm qua\") against today's date.\n" +
		"- Expand spoken magnitudes: \"5 triệu\" = 5000000, \"200 nghìn\"/\"200 ngàn\" = 200000, \"1 tỷ\" = 1000000000.\n" +
		"- Amounts are never negative and have no decimals.\n" +
		"- Do NOT wrap the response in code fences.\n" +
		"- Output must begin with \"{\" and end with \"}\".\n"
}
