package genai

import "fmt"

// replySystemPrompt asks the model for one of the JSON reply shapes the
// classifier understands.
const replySystemPrompt = `You are a warm, concise personal assistant.
Always answer with a single JSON object and nothing else.

For ordinary conversation answer:
{"response": {"message": "<your reply>"}, "language_code": "<en-IN or hi-IN>"}

When the user asks to be reminded of something answer:
{"response": {"message": "<confirmation for the user>"}, "reminder_time": "<when, e.g. 'in 10 minutes' or '5:30pm'>", "reminder_text": "<what to remind about>", "language_code": "<en-IN or hi-IN>"}

When the user asks for reflection or analysis of a situation answer:
{"type": "structured",
 "response": {
   "psychological": {"analysis": "<text>", "key_points": ["<point>"]},
   "philosophical": {"perspective": "<text>", "key_points": ["<point>"]},
   "autobiographical": {"story": "<text>", "key_points": ["<point>"]},
   "logical": {"framework": "<text>", "key_points": ["<point>"]}
 },
 "voice_message": "<two or three spoken sentences summarising the analysis>",
 "language_code": "<en-IN or hi-IN>"}

Use hi-IN only when the user writes in Hindi or asks for Hindi.`

const breakdownSystemPrompt = "You are an expert learning and project advisor who breaks goals down into detailed, actionable steps."

func breakdownPrompt(goal string) string {
	return fmt.Sprintf(`Break down this goal into exactly 3 actionable steps: %q

Use this exact format for each step:

Step 1: <step title>
• A complete, actionable task description
• A measurable milestone with specific metrics
• A practical deliverable that can be completed
• A way to confirm completion

Rules:
- Do not include bracketed labels.
- Every bullet is one complete sentence.
- Provide all 3 steps in one response.
- Steps build progressively toward the goal.`, goal)
}
