package monitor

import (
	"regexp"
	"strings"
	"text/template"
	"time"

	"twmarket/pkg/contracts/domain"
)

// TimeLayout formats the trade time in alert messages
const TimeLayout = "2006/01/02 15:04:05"

// interpolation accepts <%= name %> placeholders next to Go templates
var interpolation = regexp.MustCompile(`<%=\s*(\w+)\s*%>`)

func parseMessage(alert *domain.AlertSpec) (*template.Template, error) {
	src := interpolation.ReplaceAllString(alert.Message, "{{.$1}}")
	return template.New(alert.Name).Option("missingkey=zero").Parse(src)
}

func executeMessage(tmpl *template.Template, price float64, volume int64) (string, error) {
	var body strings.Builder
	err := tmpl.Execute(&body, map[string]interface{}{
		"price":  price,
		"volume": volume,
	})
	return body.String(), err
}

// CheckMessage reports a message template that cannot be rendered, so a
// bad alert is refused before it is registered.
func CheckMessage(alert *domain.AlertSpec) error {
	tmpl, err := parseMessage(alert)
	if err != nil {
		return err
	}
	_, err = executeMessage(tmpl, 0, 0)
	return err
}

// Render substitutes price and volume into an alert message template and
// frames it with the alert name and the trade time.
func Render(alert *domain.AlertSpec, q domain.Quote, loc *time.Location) (string, error) {
	tmpl, err := parseMessage(alert)
	if err != nil {
		return "", err
	}
	body, err := executeMessage(tmpl, q.Trade.Price, q.TotalVolume)
	if err != nil {
		return "", err
	}

	at := q.Trade.At
	if loc != nil {
		at = at.In(loc)
	}
	return "\n<<" + alert.Name + ">>\n" + body + "\n" + at.Format(TimeLayout), nil
}
