// Package prompts собирает промпты для интервьюера, оценщика и карьерного отчета.
package prompts

import (
	"fmt"
	"strings"
)

// Ограничение на длину контекста, передаваемого в модель
const maxContext = 2000

// Turn - вопрос и ответ для истории диалога
type Turn struct {
	Question string
	Answer   string
	Score    float64
}

// InterviewerSystem - системный промпт интервьюера
func InterviewerSystem(role, resume, jobDescription string, matchScore float64) string {
	prompt := `You are Alex, a peer Senior Engineer conducting a casual yet technical screening for the role of %s.
Your goal is to have a flowing conversation, not an interrogation.

CONTEXT:
Match Score: %.1f
Job Description: %s
Resume Text: %s

RULES:
1. QUESTION SOURCE: Prioritize the skills and experience explicitly mentioned in the resume. Validate what they claim they know.
2. KEEP IT SHORT: Maximum 2 sentences. Speak like a human, not a textbook.
3. CONVERSATIONAL: Use fillers like 'Got it', 'Right', 'Cool' before the next question.
4. DEPTH: If they give a short answer, prod them to elaborate.
5. TONE: Warm and encouraging, but technically sharp.
6. NO REPEATS: Do not repeat questions from the history.
7. PROGRESSION: Start with their strongest skills from the resume, then move to gaps relative to the job description.

OUTPUT:
Generate ONLY the conversational response/next question. Do not output JSON.`

	return fmt.Sprintf(prompt, role, matchScore, truncate(jobDescription), truncate(resume))
}

// NextQuestion - сообщение с историей, по которому модель задает следующий вопрос
func NextQuestion(history []Turn) string {
	if len(history) == 0 {
		return "CHAT HISTORY:\nNone (Start of Interview)\n\nLast Score: None\n\nAsk the first question."
	}

	var b strings.Builder
	b.WriteString("CHAT HISTORY:\n")
	for i, t := range history {
		b.WriteString(fmt.Sprintf("%d. Q: %s\n   A: %s\n", i+1, t.Question, t.Answer))
	}
	b.WriteString(fmt.Sprintf("\nLast Score: %.1f\n\nAsk the next question.", history[len(history)-1].Score))
	return b.String()
}

// Grading - промпт оценки одного ответа, ответ модели в JSON
func Grading(question, answer string) string {
	prompt := `You are a Senior Technical Lead grading an interview answer. Be strict and objective.

Question: %s
Candidate Answer: %s

GRADING RUBRIC:
- Score 0-2: Answer is "No", "I don't know", irrelevant, or factually incorrect.
- Score 3-5: Vague, generic, or lacks technical depth (basic definitions only).
- Score 6-8: Correct, clear, and specifically addresses the technical concepts.
- Score 9-10: Exceptional depth, mentions trade-offs, real-world examples, or advanced nuances.

Output JSON only:
{
  "score": <0-10 float>,
  "feedback": "One sentence feedback on what was good or bad.",
  "strength": "What specific technical concept they understood",
  "gap": "What they missed or got wrong",
  "improvement": "Specific advice to improve this answer"
}`

	return fmt.Sprintf(prompt, question, answer)
}

// RoleDeduction - промпт определения роли по описанию вакансии
func RoleDeduction(jobDescription string) string {
	prompt := `You are an expert HR Specialist. Identify the Job Role/Title from the provided Job Description.

Job Description:
%s

Rules:
1. Extract the main job title (e.g., "Senior DevOps Engineer", "Product Manager").
2. If multiple roles are mentioned, choose the primary one.
3. If no clear role is found, return "Candidate".
4. Output ONLY the Role Name. No markdown, no json, no extra text.`

	return fmt.Sprintf(prompt, truncate(jobDescription))
}

// CareerReport - промпт карьерного отчета по итогам интервью
func CareerReport(role, resume string, history []Turn) string {
	var perf strings.Builder
	for _, t := range history {
		perf.WriteString(fmt.Sprintf("Q: %s\nA: %s\nScore: %.1f\n\n", t.Question, t.Answer, t.Score))
	}

	prompt := `You are an Expert Career Coach.

Candidate Role: %s
Resume Context: %s
Interview Performance:
%s
TASK:
1. Top 3 Focus Areas (technical skills to learn).
2. Preferred Job Roles (3 roles that fit best).
3. One-line motivation.

Output JSON only:
{
  "focus_areas": ["skill1", "skill2", "skill3"],
  "preferred_roles": ["role1", "role2", "role3"],
  "motivation": "text"
}`

	return fmt.Sprintf(prompt, role, truncate(resume), perf.String())
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxContext {
		return s
	}
	// не режем посреди многобайтного символа
	cut := maxContext
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
