package extraction

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/samber/lo"

	"travel-agent/internal/domain"
)

func buildExtractionMessages(text string, history []domain.Turn, known domain.TravelEntities, today civil.Date) []domain.ChatMessage {
	messages := []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: buildInstructionPrompt(today)},
		{Role: domain.RoleSystem, Content: buildKnownEntitiesPrompt(known)},
	}
	for _, t := range history {
		content := normalizePromptInput(t.Text)
		if content == "" {
			continue
		}
		messages = append(messages, domain.ChatMessage{
			Role:    lo.Ternary(t.IsBot, domain.RoleAssistant, domain.RoleUser),
			Content: content,
		})
	}
	return append(messages, domain.ChatMessage{
		Role:    domain.RoleUser,
		Content: normalizePromptInput(text),
	})
}

func buildInstructionPrompt(today civil.Date) string {
	return strings.Join([]string{
		"Role:",
		"You extract structured trip details from a traveller's chat messages.",
		"",
		"Task:",
		"Read the latest user message, using earlier turns only to resolve references.",
		"Return the trip facts the latest message states explicitly.",
		"",
		fmt.Sprintf("Today is %s (%s). Resolve relative dates against it.", today, today.In(time.UTC).Weekday()),
		"",
		"Rules:",
		extractionRules(),
		"",
		"Output Contract:",
		extractionContract(),
	}, "\n")
}

func extractionRules() string {
	return strings.Join([]string{
		"1) Extract only facts stated in the latest message; leave everything else empty.",
		"2) Do not repeat known facts unless the latest message changes them.",
		"3) Write place names in the nominative case, in the language the user wrote them in.",
		"4) A date without a year means its nearest occurrence on or after today.",
		"5) A weekday name means its next occurrence after today.",
		"6) transport_priority lists only bus, train, plane, ship or walk, most preferred first.",
		"7) intermediate_waypoints lists stops between origin and destination in travel order.",
	}, "\n")
}

func extractionContract() string {
	return "Return one JSON object only, no prose and no markdown, with keys " +
		"origin (string), destination (string), departure_date (string, YYYY-MM-DD or empty), " +
		"transport_priority (array of strings) and intermediate_waypoints (array of strings). " +
		"Use an empty string or empty array for anything not stated."
}

func buildKnownEntitiesPrompt(known domain.TravelEntities) string {
	raw, err := json.Marshal(known)
	if err != nil {
		raw = []byte("{}")
	}
	return "Known so far (do not ask for these again):\n" + string(raw)
}

func normalizePromptInput(s string) string {
	return strings.Join(strings.Fields(strings.TrimSpace(s)), " ")
}
