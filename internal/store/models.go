package store

import "time"

const (
	StatusOnline  = "online"
	StatusOffline = "offline"

	RoleAdmin  = "admin"
	RoleMember = "member"

	TypeText = "text"
	TypeFile = "file"
)

type Profile struct {
	ID           string    `bson:"_id" json:"id"`
	Email        string    `bson:"email" json:"email"`
	DisplayName  string    `bson:"display_name" json:"display_name"`
	Bio          string    `bson:"bio,omitempty" json:"bio,omitempty"`
	AvatarURL    string    `bson:"avatar_url,omitempty" json:"avatar_url,omitempty"`
	OnlineStatus string    `bson:"online_status" json:"online_status"`
	LastSeen     time.Time `bson:"last_seen" json:"last_seen"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
}

// FileMeta is embedded in the message document that carries the attachment.
type FileMeta struct {
	ID         string `bson:"id" json:"id"`
	FileName   string `bson:"file_name" json:"file_name"`
	FileType   string `bson:"file_type" json:"file_type"`
	FileSize   int64  `bson:"file_size" json:"file_size"`
	StorageKey string `bson:"storage_key" json:"storage_key"`
	URL        string `bson:"url,omitempty" json:"url,omitempty"`
}

type Message struct {
	ID          string    `bson:"_id" json:"id"`
	SenderID    string    `bson:"sender_id" json:"sender_id"`
	ReceiverID  string    `bson:"receiver_id" json:"receiver_id"`
	Content     string    `bson:"content" json:"content"`
	MessageType string    `bson:"message_type" json:"message_type"`
	Read        bool      `bson:"read" json:"read"`
	File        *FileMeta `bson:"file,omitempty" json:"file,omitempty"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
}

type Group struct {
	ID          string    `bson:"_id" json:"id"`
	Name        string    `bson:"name" json:"name"`
	Description string    `bson:"description,omitempty" json:"description,omitempty"`
	AvatarURL   string    `bson:"avatar_url,omitempty" json:"avatar_url,omitempty"`
	CreatedBy   string    `bson:"created_by" json:"created_by"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at" json:"updated_at"`
}

type GroupMember struct {
	GroupID    string    `bson:"group_id" json:"group_id"`
	UserID     string    `bson:"user_id" json:"user_id"`
	Role       string    `bson:"role" json:"role"`
	LastReadAt time.Time `bson:"last_read_at" json:"last_read_at"`
	JoinedAt   time.Time `bson:"joined_at" json:"joined_at"`
}

type GroupMessage struct {
	ID          string    `bson:"_id" json:"id"`
	GroupID     string    `bson:"group_id" json:"group_id"`
	SenderID    string    `bson:"sender_id" json:"sender_id"`
	Content     string    `bson:"content" json:"content"`
	MessageType string    `bson:"message_type" json:"message_type"`
	File        *FileMeta `bson:"file,omitempty" json:"file,omitempty"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
}

// Media is the metadata row for an uploaded object; messages embed a
// FileMeta derived from it.
type Media struct {
	ID          string    `bson:"_id" json:"id"`
	UserID      string    `bson:"user_id" json:"user_id"`
	Key         string    `bson:"key" json:"key"`
	URL         string    `bson:"url,omitempty" json:"url,omitempty"`
	Thumbnail   string    `bson:"thumbnail,omitempty" json:"thumbnail,omitempty"`
	Type        string    `bson:"type" json:"type"` // image|file
	FileName    string    `bson:"file_name" json:"file_name"`
	Size        int64     `bson:"size" json:"size"`
	ContentType string    `bson:"content_type" json:"content_type"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
}
