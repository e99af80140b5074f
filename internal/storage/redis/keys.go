package redis

import (
	"fmt"

	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/model"
)

// Key prefix for all engine data
const keyPrefix = "arc"

// playerKey returns the Redis key for a Player
func playerKey(id model.PlayerID) string {
	return fmt.Sprintf("%s:player:%s", keyPrefix, id)
}

// playerLockKey returns the key guarding UpdatePlayer for one player
func playerLockKey(id model.PlayerID) string {
	return fmt.Sprintf("%s:lock:player:%s", keyPrefix, id)
}

// nameIndexKey returns the Redis key for the name -> player_id index
func nameIndexKey(name string) string {
	return fmt.Sprintf("%s:idx:name:%s", keyPrefix, name)
}

// emailIndexKey returns the Redis key for the email -> player_id index
func emailIndexKey(email string) string {
	return fmt.Sprintf("%s:idx:email:%s", keyPrefix, email)
}

// sessionKey returns the Redis key for a Session
func sessionKey(token string) string {
	return fmt.Sprintf("%s:session:%s", keyPrefix, token)
}

// eventWindowKey returns the ZSET of events for one kind and window key, scored by unix millis
func eventWindowKey(kind model.AuthEventKind, key model.EventKey) string {
	return fmt.Sprintf("%s:events:%s:%s:%s", keyPrefix, kind, key.Scope, key.Value)
}

// eventWindowsIndexKey returns the SET of every event window key, walked when pruning
func eventWindowsIndexKey() string {
	return fmt.Sprintf("%s:idx:event_windows", keyPrefix)
}

// bestKey returns the HASH of chart -> BestScore for a player
func bestKey(id model.PlayerID) string {
	return fmt.Sprintf("%s:best:%s", keyPrefix, id)
}

// recentKey returns the LIST holding a player's recent-play ring, newest first
func recentKey(id model.PlayerID) string {
	return fmt.Sprintf("%s:recent:%s", keyPrefix, id)
}

// submissionKey returns the Redis key for a processed submission
func submissionKey(id model.PlayerID, submissionID string) string {
	return fmt.Sprintf("%s:submission:%s:%s", keyPrefix, id, submissionID)
}

// progressKey returns the HASH of map_id -> MapProgress for a player
func progressKey(id model.PlayerID) string {
	return fmt.Sprintf("%s:map_progress:%s", keyPrefix, id)
}
