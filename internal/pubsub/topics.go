package pubsub

// Topic names. Per-entity topics carry the entity id as a suffix so that a
// subscriber only ever receives events for the entity it asked about.
const (
	PostAdded      = "POST_ADDED"
	PostUpdated    = "POST_UPDATED"
	PostDeleted    = "POST_DELETED"
	CommentAdded   = "COMMENT_ADDED"
	CommentUpdated = "COMMENT_UPDATED"
	CommentDeleted = "COMMENT_DELETED"
)

func UserUpdated(userID string) string    { return "USER_UPDATED_" + userID }
func UserFollowed(userID string) string   { return "USER_FOLLOWED_" + userID }
func UserUnfollowed(userID string) string { return "USER_UNFOLLOWED_" + userID }

func MessageAdded(chatID string) string   { return "MESSAGE_ADDED_" + chatID }
func MessageUpdated(chatID string) string { return "MESSAGE_UPDATED_" + chatID }
func ChatUpdated(chatID string) string    { return "CHAT_UPDATED_" + chatID }

func NotificationAdded(recipientID string) string   { return "NOTIFICATION_ADDED_" + recipientID }
func NotificationUpdated(recipientID string) string { return "NOTIFICATION_UPDATED_" + recipientID }
func NotificationDeleted(recipientID string) string { return "NOTIFICATION_DELETED_" + recipientID }
