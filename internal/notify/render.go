package notify

import (
	"regexp"
	"strings"

	"github.com/fitdesk/fitdesk-api/internal/models"
	"github.com/rs/zerolog"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// Placeholders every recipient context provides, regardless of trigger.
var basePlaceholders = []string{"name", "email", "phone"}

// Trigger-specific placeholders carried in entry metadata by the alert
// processor or direct event helpers.
var triggerPlaceholders = map[models.TriggerEvent][]string{
	models.TriggerSLABreach:      {"ticket_id", "ticket_title", "equipment_name", "due_date"},
	models.TriggerLowStock:       {"item_name", "current_stock", "minimum_stock"},
	models.TriggerMaintenanceDue: {"equipment_name", "location", "next_service_at"},
	models.TriggerTicketAssigned: {"ticket_id", "ticket_title", "equipment_name", "due_date"},
	models.TriggerTicketResolved: {"ticket_id", "ticket_title", "equipment_name"},
}

// Renderer substitutes {{placeholder}} patterns with recipient context
// values. Substitution is pure; a missing placeholder renders as an empty
// string with a warning rather than failing the delivery, since required
// fields are validated at enqueue time.
type Renderer struct {
	logger zerolog.Logger
}

func NewRenderer(logger zerolog.Logger) *Renderer {
	return &Renderer{logger: logger.With().Str("component", "renderer").Logger()}
}

// Render produces the final subject and body for a template against ctx.
func (r *Renderer) Render(tpl models.Template, ctx map[string]string) (subject, body string) {
	subject = r.substitute(tpl.Name, tpl.SubjectTemplate, ctx)
	body = r.substitute(tpl.Name, tpl.BodyTemplate, ctx)
	return subject, body
}

func (r *Renderer) substitute(templateName, pattern string, ctx map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(pattern, func(match string) string {
		key := placeholderPattern.FindStringSubmatch(match)[1]
		value, ok := ctx[key]
		if !ok {
			r.logger.Warn().
				Str("template", templateName).
				Str("placeholder", key).
				Msg("placeholder missing from context, rendering empty")
			return ""
		}
		return value
	})
}

// ValidatePatterns checks that subject and body only reference placeholders
// known for the template's trigger event. Called at template create/update.
func ValidatePatterns(trigger models.TriggerEvent, subjectTemplate, bodyTemplate string) error {
	known := map[string]bool{}
	for _, p := range basePlaceholders {
		known[p] = true
	}
	for _, p := range triggerPlaceholders[trigger] {
		known[p] = true
	}

	var unknown []string
	for _, pattern := range []string{subjectTemplate, bodyTemplate} {
		for _, match := range placeholderPattern.FindAllStringSubmatch(pattern, -1) {
			if !known[match[1]] {
				unknown = append(unknown, match[1])
			}
		}
	}
	if len(unknown) > 0 {
		return Validationf("unknown placeholders for trigger %s: %s", trigger, strings.Join(unknown, ", "))
	}
	return nil
}
