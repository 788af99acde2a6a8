package prompt

// Prompts untuk vendor OCR tier (vision model).

func OCRSystem() string {
	return "You transcribe one scanned page from a corporate annual report. " +
		"Preserve line breaks and keep table rows on single lines with columns separated by two spaces. " +
		"Do not summarize, translate, or skip anything. Respond with JSON only: " +
		`{"text":"<full transcription>","confidence":0.0-1.0}` +
		" where confidence reflects how legible the page was."
}

func OCRUser() string {
	return "Transcribe this page."
}
