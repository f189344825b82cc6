// Package mllpclient implements the outbound side of an HL7 v2 MLLP connection.
//
// A Channel owns one logical connection to a receiver. It connects lazily on the first send
// (or eagerly with Open), retries timed out connection attempts with exponential backoff,
// tracks one outstanding acknowledgment at a time when WithWaitAck is enabled, and closes
// itself after the acknowledgment has been processed unless WithKeepOpen is set.
//
// Channel state moves through ConnectingState, OpenState, ConnectedState, ClosingState and
// ClosedState. ClosedState is terminal; a closed Channel is never reused.
//
// A Client holds default options and creates channels that inherit them:
//
//	client, err := mllpclient.NewClient("10.1.2.3", mllpclient.WithMaxAttempts(5))
//	ch, err := client.CreateChannel(ctx, 2575, func(ch *mllpclient.Channel, ack *hl7.Ack) {
//		log.Println("ack", ack.Code, ack.ControlID)
//	})
//	err = ch.SendMessage(ctx, msg)
package mllpclient
