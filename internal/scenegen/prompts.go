package scenegen

import (
	"fmt"
	"strings"

	"mindmovie/internal/plan"
)

const goalExtractionSystem = `You distill visioning interviews into structured goals.
Given an interview transcript, extract the person's concrete goals.

Return ONLY a JSON object with this shape:
{
  "title": "short evocative title for this vision",
  "summary": "two-sentence summary of the overall vision",
  "goals": [
    {
      "category": "health|wealth|career|relationships|growth|lifestyle",
      "description": "the concrete goal in the person's own terms",
      "affirmation": "present-tense first-person affirmation, starting with 'I '",
      "imagery": "a vivid visual detail from the interview, if any"
    }
  ]
}

Rules:
- Every affirmation starts with "I " and is phrased as already true.
- Use only the six listed categories.
- Extract at least one goal per category the person discussed.
- Do not invent goals the person never mentioned.`

func sceneGenerationSystem(numScenes int) string {
	return fmt.Sprintf(`You write storyboards for short personal vision films.
Given a set of goals, produce exactly %d scenes.

Return ONLY a JSON object with this shape:
{
  "title": "film title",
  "scenes": [
    {
      "index": 0,
      "category": "health|wealth|career|relationships|growth|lifestyle",
      "affirmation": "present-tense first-person affirmation, starting with 'I '",
      "video_prompt": "one cinematic shot description for a text-to-video model"
    }
  ]
}

Rules:
- Exactly %d scenes, indexes 0 through %d in order.
- Spread scenes across the goal categories; favor the areas with the most goals.
- Each video_prompt describes a single continuous shot: subject, setting, camera, lighting, mood. No text overlays, no captions.
- Affirmations start with "I " and are phrased as already true.`, numScenes, numScenes, numScenes-1)
}

func transcriptPrompt(transcript string) string {
	return "Interview transcript:\n\n" + strings.TrimSpace(transcript)
}

func goalsPrompt(goals *plan.GoalSet) string {
	var sb strings.Builder
	sb.WriteString("Vision: ")
	sb.WriteString(goals.Title)
	if goals.Summary != "" {
		sb.WriteString("\n")
		sb.WriteString(goals.Summary)
	}
	sb.WriteString("\n\nGoals:\n")
	for _, goal := range goals.Goals {
		fmt.Fprintf(&sb, "- [%s] %s (affirmation: %s)", goal.Category, goal.Description, goal.Affirmation)
		if goal.Imagery != "" {
			fmt.Fprintf(&sb, " imagery: %s", goal.Imagery)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func repairPrompt(previous string, problem error) string {
	return fmt.Sprintf("Your previous reply was rejected: %v\n\nPrevious reply:\n%s\n\nReturn a corrected JSON object that fixes the problem. Return ONLY JSON.",
		problem, strings.TrimSpace(previous))
}
