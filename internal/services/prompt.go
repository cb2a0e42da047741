package services

import (
	"fmt"
	"strings"
)

const tutorPolicy = `You are Mwalimu, a friendly AI tutor for primary and secondary school students across Africa.
Explain ideas step by step using simple language and everyday African examples (markets, farming, football, local foods).
Encourage the student to reason: ask a guiding question before giving a full answer to homework problems.
Keep answers age-appropriate and kind. Never share personal contact details or ask for them.
If a student seems upset or unsafe, gently suggest talking to a trusted adult or teacher.`

const whatsAppPolicy = tutorPolicy + `
You are replying on WhatsApp. Answer in plain text without markdown, headings or tables.
Keep replies under 120 words. Use short paragraphs and at most one emoji.`

func tutorSystemPrompt(base, subject, language string) string {
	var b strings.Builder
	b.WriteString(base)
	if s := strings.TrimSpace(subject); s != "" {
		fmt.Fprintf(&b, "\nThe student is studying %s; keep the conversation on that subject.", s)
	}
	if l := strings.TrimSpace(language); l != "" {
		fmt.Fprintf(&b, "\nReply in %s.", l)
	}
	return b.String()
}

const jsonOnlyPolicy = `You design school content for African learners. Respond with a single JSON object only, no prose and no code fences.`

func curriculumPrompt(subject, grade, country string) string {
	if country == "" {
		country = "an African country"
	}
	return fmt.Sprintf(`Create a term curriculum for %s, grade %s, suitable for students in %s.
Return JSON with exactly this shape:
{"subject": string, "grade": string, "units": [{"title": string, "objectives": [string], "lessons": [{"title": string, "summary": string}]}]}
Include 3 to 5 units, each with 2 to 4 objectives and 2 to 4 lessons.`, subject, grade, country)
}

func quizPrompt(subject, topic, grade string, count int) string {
	level := ""
	if grade != "" {
		level = " for grade " + grade
	}
	return fmt.Sprintf(`Write %d multiple choice questions about %s in %s%s.
Return JSON with exactly this shape:
{"subject": string, "topic": string, "questions": [{"question": string, "options": [string, string, string, string], "answer_index": number, "explanation": string}]}
Every question has exactly four options and answer_index is the zero-based index of the correct option.`, count, topic, subject, level)
}

func analysisPrompt(subject string, missed []string, score, total int) string {
	return fmt.Sprintf(`A student scored %d out of %d on a %s quiz.
They answered these questions incorrectly:
- %s
Return JSON with exactly this shape:
{"feedback": string, "weak_topics": [string]}
The feedback is two or three encouraging sentences addressed to the student. weak_topics lists at most three short topic names.`,
		score, total, subject, strings.Join(missed, "\n- "))
}
