package app

import (
	"encoding/json"

	"bsbtrace/pkg/app/config"
	"bsbtrace/pkg/mqtt"
	"bsbtrace/pkg/tracelog"

	"github.com/womat/debug"
)

// alert is the mqtt message of a fired trigger.
type alert struct {
	ID        int     `json:"disp_id"`
	FieldName string  `json:"fieldname"`
	Trigger   string  `json:"trigger"`
	Param1    float64 `json:"param1"`
	Param2    float64 `json:"param2"`
	Prev      string  `json:"prev"`
	Value     string  `json:"value"`
	Time      int64   `json:"time"`
}

// onTrigger returns the trigger callback of field f. It logs the event and
// publishes it to the trigger topic of the field.
func (app *App) onTrigger(f config.FieldConfig) tracelog.TriggerFunc {
	return func(ev tracelog.TriggerEvent) {
		_, prev, _ := tracelog.Encode(ev.Prev)
		_, cur, _ := tracelog.Encode(ev.Current)

		debug.InfoLog.Printf("field %v (%v): %v %v fired, %v -> %v", f.ID, f.Name, ev.Kind, ev.Param1, prev, cur)
		app.metrics.triggers.WithLabelValues(fieldLabel(f.ID), string(ev.Kind)).Inc()

		b, err := json.Marshal(alert{
			ID:        f.ID,
			FieldName: f.Name,
			Trigger:   string(ev.Kind),
			Param1:    ev.Param1,
			Param2:    ev.Param2,
			Prev:      prev,
			Value:     cur,
			Time:      ev.Timestamp,
		})
		if err != nil {
			debug.ErrorLog.Printf("trigger alert marshal: %v", err)
			return
		}

		app.publish(mqtt.Message{
			Topic:   mqtt.TriggerTopic(app.config.MQTT.Topic, f.ID),
			Payload: b,
			Qos:     1,
		})
	}
}
