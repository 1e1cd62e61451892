package wordtiming

import (
	"fmt"
	"strings"
)

// systemPrompt is sent with every fallback request.
const systemPrompt = `You are a precise speech timing assistant.
You receive a short audio clip and the exact words spoken in it.
Return the start and end time of every word in seconds, measured from the beginning of the clip.
Keep the given word order and spelling. Do not merge, split, add, or drop words.
Respond with JSON only, in exactly this shape:
{"words":[{"word":"<word>","start":<seconds>,"end":<seconds>}]}`

func buildUserPrompt(text string, clipDuration float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Clip duration: %.3f seconds.\n", clipDuration)
	fmt.Fprintf(&b, "Word count: %d.\n", len(strings.Fields(text)))
	b.WriteString("Spoken text:\n")
	b.WriteString(strings.TrimSpace(text))
	return b.String()
}
