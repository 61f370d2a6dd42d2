package gateway

import "fmt"

func buildOCRPrompt() string {
	return `You are performing OCR (Optical Character Recognition) on a scanned page of a historical German book.

Your task is to extract ALL German running text from the image exactly as it appears, preserving:
- Paragraph breaks
- Original spelling, including historical orthography (e.g. "Thür", "seyn")
- Umlauts and ß
- Punctuation, including hyphens at the end of a line or page

INSTRUCTIONS:
1. Read the page from top to bottom
2. Transcribe the body text; skip running headers, page numbers and printer's marks
3. Do not transcribe musical notation or describe illustrations
4. Do not add any interpretation, commentary, or translation
5. If text is partially obscured or unclear, transcribe what you can see and use [?] for illegible portions

OUTPUT FORMAT:
Provide ONLY the extracted German text. Do not include phrases like "Here is the text:".`
}

func buildTranslationPrompt(german string) string {
	return fmt.Sprintf(`You are an expert literary translator of nineteenth-century German prose into Korean and English.

Split the German text below into sentences and translate each sentence into Korean and English.

INSTRUCTIONS:
1. Keep the German sentences exactly as written, in their original order
2. Every German sentence must appear exactly once
3. Translate faithfully; keep names, titles and musical terms recognizable
4. Do not merge or split sentences between languages; each entry is one aligned sentence

OUTPUT FORMAT:
Respond with ONLY a JSON object in the following format:

{
  "sentences": [
    {"de": "German sentence", "ko": "Korean translation", "en": "English translation"}
  ]
}

GERMAN TEXT:
%s`, german)
}

func buildMergePrompt(previousEnding, current string) string {
	return fmt.Sprintf(`You are an expert editor and translator of nineteenth-century German books into Korean and English.

You are given the END of the previous page and the text of the CURRENT page. A page break may have split a word
(hyphenated at the end of the previous page, e.g. "Musik-" + "drama") or a sentence across the two pages.

INSTRUCTIONS:
1. Decide whether the current page begins with the continuation of a word or sentence from the previous page
2. If it does, join the broken piece onto the first sentence of the current page, removing the line-break hyphen
3. Report the text taken from the previous page in "merged_from_previous" (empty string if nothing was merged)
4. Return the cleaned current-page German text, including any merged fragment, in "clean_german"
5. Split "clean_german" into sentences and translate each into Korean and English
6. Do not translate or repeat complete sentences that belong only to the previous page

OUTPUT FORMAT:
Respond with ONLY a JSON object in the following format:

{
  "merged_from_previous": "fragment taken from the previous page or empty string",
  "clean_german": "cleaned German text of the current page",
  "sentences": [
    {"de": "German sentence", "ko": "Korean translation", "en": "English translation"}
  ]
}

END OF PREVIOUS PAGE:
%s

CURRENT PAGE:
%s`, previousEnding, current)
}

func buildLayoutPrompt() string {
	return `You are analyzing the layout of a scanned page from a historical German book about music.

Identify the content blocks on the page from top to bottom. Block types:
- "text": running text
- "music_score": printed musical notation
- "illustration": pictures, engravings, portraits or diagrams

For every block give its vertical position as percentages of the page height, where 0 is the top edge
and 100 is the bottom edge. For "text" blocks include the German text in "content". For the other
types include a short English "description".

Classify the whole page with "page_type": "text", "music_score", "illustration", or "mixed".

OUTPUT FORMAT:
Respond with ONLY a JSON object in the following format:

{
  "page_type": "mixed",
  "blocks": [
    {"type": "text", "content": "...", "top": 0, "bottom": 40},
    {"type": "music_score", "description": "...", "top": 40, "bottom": 75}
  ]
}`
}
