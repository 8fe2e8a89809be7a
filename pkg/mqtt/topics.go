package mqtt

import (
	"fmt"
	"strconv"
	"strings"
)

// GetTopic is the topic the bus gateway listens on for field read requests.
func GetTopic(prefix string) string {
	return prefix + "/get"
}

// ValueTopic is the topic a reading of field id is delivered on.
func ValueTopic(prefix string, id int) string {
	return prefix + "/value/" + strconv.Itoa(id)
}

// ValueFilter matches the value topics of all fields.
func ValueFilter(prefix string) string {
	return prefix + "/value/+"
}

// TriggerTopic is the topic trigger alerts of field id are published on.
func TriggerTopic(prefix string, id int) string {
	return prefix + "/trigger/" + strconv.Itoa(id)
}

// ParseValueTopic returns the field id of a value topic.
func ParseValueTopic(prefix, topic string) (int, error) {
	s := strings.TrimPrefix(topic, prefix+"/value/")
	if s == topic || s == "" || strings.Contains(s, "/") {
		return 0, fmt.Errorf("%q isn't a value topic", topic)
	}

	id, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%q isn't a value topic: %w", topic, err)
	}
	return id, nil
}
