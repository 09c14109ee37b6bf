// Package mqtt connects the EnOcean service to the Gray Logic broker.
//
// The bridge publishes entity state, button events and health on the
// graylogic/* topic tree and answers read requests arriving on it; the API
// relays the same topics to WebSocket clients. Topics builds every name.
//
// Connect registers a Last Will before dialing. Without options it lands on
// graylogic/system/status/{client_id}; the bridge passes WithWill so the
// broker marks graylogic/health/enocean offline instead. Subscriptions made
// through Subscribe or SubscribeFunc are replayed after each reconnect.
//
//	client, err := mqtt.Connect(cfg.MQTT, mqtt.WithWill(willTopic, willPayload))
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	err = client.SubscribeFunc(mqtt.Topics{}.AllBridgeRequests("enocean"), 1, onRequest)
package mqtt
