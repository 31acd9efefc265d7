package notification

import (
	"fmt"
	"html/template"
	"sort"
	"strings"

	"github.com/sentinelops/anomaly-sentinel/internal/domain/anomaly"
)

const increaseColor = "#FF6B6B"
const decreaseColor = "#4CAF50"

var adminHTML = template.Must(template.New("admin").Parse(`<html><body>
<h2>{{.Title}}</h2>
<p>{{.Description}}</p>
<table border="1" cellpadding="4">
{{range .Rows}}<tr><td><b>{{.Name}}</b></td><td>{{.Value}}</td></tr>
{{end}}</table>
</body></html>`))

var customerDeliveryHTML = template.Must(template.New("delivery").Parse(`<html><body>
<h2>Update on your order</h2>
<p>{{.Body}}</p>
{{if .WeatherNote}}<p><i>{{.WeatherNote}}</i></p>{{end}}
<p>We apologize for the inconvenience.</p>
</body></html>`))

var customerPriceHTML = template.Must(template.New("price").Parse(`<html><body>
<h2>Price change notice</h2>
<p>The price of a product you follow has changed:
<span style="color:{{.Color}};font-weight:bold">{{.Direction}} of {{.Magnitude}}</span>.</p>
<p>New price: {{.NewPrice}}</p>
</body></html>`))

type adminRow struct {
	Name  string
	Value string
}

// adminMessage renders the internal alert: a subject keyed by event type and
// a body enumerating every non-message field of the event.
func adminMessage(event *anomaly.Event, recipients []string) (Message, error) {
	rows := []adminRow{{Name: "type", Value: string(event.Type)}}
	rows = append(rows, sortedRows("subject", stringValues(event.SubjectIDs))...)
	rows = append(rows, sortedRows("metric", floatValues(event.Metrics))...)
	rows = append(rows, sortedRows("threshold", floatValues(event.DerivedThresholds))...)
	rows = append(rows, sortedRows("label", stringValues(event.Labels))...)

	var text strings.Builder
	fmt.Fprintf(&text, "%s\n\n%s\n\n", event.Message, event.Description)
	for _, row := range rows {
		fmt.Fprintf(&text, "%s: %s\n", row.Name, row.Value)
	}

	var html strings.Builder
	err := adminHTML.Execute(&html, struct {
		Title       string
		Description string
		Rows        []adminRow
	}{Title: event.Message, Description: event.Description, Rows: rows})
	if err != nil {
		return Message{}, err
	}

	return Message{
		Subject:    fmt.Sprintf("[anomaly] %s: %s", event.Type, event.Message),
		TextBody:   text.String(),
		HTMLBody:   html.String(),
		Recipients: recipients,
	}, nil
}

// customerDeliveryMessage composes the customer-facing delay notice. When the
// cycle also flagged the delivery's weather observation, the delay is
// explicitly attributed to weather.
func customerDeliveryMessage(event *anomaly.Event, weather *anomaly.Event, recipients []string) (Message, error) {
	body := fmt.Sprintf("Your order %s is experiencing a delivery delay.", event.SubjectIDs["order_id"])
	weatherNote := ""
	if weather != nil {
		weatherNote = fmt.Sprintf("The delay is caused by severe %s conditions near %s.",
			weather.Labels["weather_type"], weather.Labels["location"])
	}

	text := body
	if weatherNote != "" {
		text += "\n" + weatherNote
	}

	var html strings.Builder
	err := customerDeliveryHTML.Execute(&html, struct {
		Body        string
		WeatherNote string
	}{Body: body, WeatherNote: weatherNote})
	if err != nil {
		return Message{}, err
	}

	return Message{
		Subject:    "Your delivery is delayed",
		TextBody:   text,
		HTMLBody:   html.String(),
		Recipients: recipients,
	}, nil
}

// customerPriceMessage composes the customer-facing price notice with the
// direction emphasized: red for an increase, green for a decrease.
func customerPriceMessage(event *anomaly.Event, recipients []string) (Message, error) {
	direction := event.Labels["direction"]
	color := increaseColor
	if direction == "decrease" {
		color = decreaseColor
	}
	magnitude := fmt.Sprintf("%+.2f%%", event.Metrics["change_percent"])
	newPrice := fmt.Sprintf("%.2f", event.Metrics["current_price"])

	var html strings.Builder
	err := customerPriceHTML.Execute(&html, struct {
		Color     string
		Direction string
		Magnitude string
		NewPrice  string
	}{Color: color, Direction: direction, Magnitude: magnitude, NewPrice: newPrice})
	if err != nil {
		return Message{}, err
	}

	return Message{
		Subject: "Price change on a product you follow",
		TextBody: fmt.Sprintf("The price changed: %s of %s. New price: %s",
			direction, magnitude, newPrice),
		HTMLBody:   html.String(),
		Recipients: recipients,
	}, nil
}

func sortedRows(prefix string, values map[string]string) []adminRow {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	rows := make([]adminRow, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, adminRow{Name: prefix + "." + k, Value: values[k]})
	}
	return rows
}

func stringValues(m map[string]string) map[string]string {
	return m
}

func floatValues(m map[string]float64) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = fmt.Sprintf("%g", v)
	}
	return out
}
