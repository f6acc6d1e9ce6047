package api

import (
	"encoding/json"
	"strings"

	"github.com/nerrad567/gray-logic-radio/internal/infrastructure/mqtt"
)

// channelForTopic maps a bridge topic to its stream channel.
//
//	graylogic/state/ble/<address>  -> ble.reading
//	graylogic/state/lora/sensor-*  -> lora.sensor
//	graylogic/state/lora/<cover>   -> lora.cover
//	graylogic/event/<bridge>/<ev>  -> <bridge>.<ev>
//	graylogic/health/<bridge>      -> health
func channelForTopic(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) < 3 || parts[0] != mqtt.TopicPrefixBridge {
		return "", false
	}

	switch kind := parts[1]; {
	case kind == "state" && len(parts) == 4 && parts[2] == "ble":
		return ChannelBLEReading, true
	case kind == "state" && len(parts) == 4 && parts[2] == "lora":
		if strings.HasPrefix(parts[3], "sensor-") {
			return ChannelLoRaSensor, true
		}
		return ChannelLoRaCover, true
	case kind == "event" && len(parts) == 4:
		return parts[2] + "." + parts[3], true
	case kind == "health" && len(parts) == 3:
		return ChannelHealth, true
	}
	return "", false
}

// subscribeEvents relays bridge state, events and health to the hub.
func (s *Server) subscribeEvents() error {
	if s.mqtt == nil {
		return nil
	}

	topics := mqtt.Topics{}
	for _, filter := range []string{
		topics.AllBridgeStates(),
		topics.BridgeEvent("+", "+"),
		topics.AllBridgeHealth(),
	} {
		if err := s.mqtt.Subscribe(filter, 0, s.relayEvent); err != nil {
			return err
		}
	}
	s.logger.Info("relaying bridge events to stream clients")
	return nil
}

// relayEvent broadcasts one bridge publication. Payloads that are not JSON
// objects are skipped.
func (s *Server) relayEvent(topic string, payload []byte) error {
	channel, ok := channelForTopic(topic)
	if !ok {
		return nil
	}

	var body map[string]any
	if err := json.Unmarshal(payload, &body); err != nil {
		s.logger.Debug("skipping non-JSON bridge message", "topic", topic)
		return nil
	}
	s.hub.Broadcast(channel, body)
	return nil
}
