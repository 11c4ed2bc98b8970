package messaging

import "valikoo/internal/domain/entity"

// ComputeUnread derives unread counts from the message cache: for every
// conversation, the number of messages not sent by selfID and not yet read.
// Messages with no status count as unread.
//
// This is the only unread computation in the client. The web client kept
// three competing ones (fetch-time, socket-driven increments, select-time)
// that drifted apart; here every cache mutation re-derives from scratch.
func ComputeUnread(cache map[string][]entity.Message, selfID string) map[string]int {
	counts := make(map[string]int, len(cache))
	for conversationID, msgs := range cache {
		n := 0
		for i := range msgs {
			if msgs[i].IsUnreadBy(selfID) {
				n++
			}
		}
		counts[conversationID] = n
	}
	return counts
}
