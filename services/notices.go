package services

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Message keys for the human-readable notices broadcast to rooms.
const (
	noticeJoined        = "room.joined"
	noticeLeft          = "room.left"
	noticeDisconnected  = "room.disconnected"
	noticeAnonymousGone = "room.anonymous_disconnected"
	noticeRoomDeleted   = "room.deleted"
	noticeCleanupFailed = "room.cleanup_failed"
	noticeRoomNotFound  = "room.not_found"
	noticeJoinMissing   = "room.join_missing_fields"
	noticeLeaveMissing  = "room.leave_missing_fields"
	noticeBadDuration   = "timer.bad_duration"
	noticeUnknownAction = "timer.unknown_action"
	noticeChatFailed    = "chat.send_failed"
)

var noticeCatalog = map[string]string{
	noticeJoined:        "%s has joined the room.",
	noticeLeft:          "%s has left the room.",
	noticeDisconnected:  "%s has disconnected.",
	noticeAnonymousGone: "A user (UID: %s) has disconnected.",
	noticeRoomDeleted:   "Room has been deleted as all participants have left.",
	noticeCleanupFailed: "Error during room cleanup. It may already be deleted.",
	noticeRoomNotFound:  "Room '%s' not found.",
	noticeJoinMissing:   "Room, user ID and display name are required to join.",
	noticeLeaveMissing:  "Room and user ID are required to leave.",
	noticeBadDuration:   "Durations must be positive whole minutes.",
	noticeUnknownAction: "Unknown timer action '%s'.",
	noticeChatFailed:    "Message could not be sent.",
}

var notices = newNoticePrinter()

func newNoticePrinter() *message.Printer {
	for key, msg := range noticeCatalog {
		_ = message.SetString(language.English, key, msg)
	}
	return message.NewPrinter(language.English)
}

// notice renders a catalog message.
func notice(key string, args ...any) string {
	return notices.Sprintf(key, args...)
}
