package media

import (
	"encoding/json"
	"fmt"

	"github.com/ZEGOCLOUD/zego_server_assistant/token/go/src/token04"
)

// RtcRoomPayload is the payload for a room-scoped provider token. See the
// provider's token04 docs.
type RtcRoomPayload struct {
	RoomID       string      `json:"RoomId"`
	Privilege    map[int]int `json:"Privilege"`
	StreamIDList []string    `json:"StreamIdList,omitempty"`
}

// GenerateRoomToken signs a provider token letting userID join roomID from
// the browser. Interview participants (candidate and agent) always publish;
// tokens for observers pass canPublish=false.
// appID and serverSecret come from the provider console; serverSecret must be
// 32 characters.
func GenerateRoomToken(appID uint32, serverSecret, roomID, userID string, canPublish bool, effectiveTimeSec int64) (string, error) {
	if appID == 0 || serverSecret == "" {
		return "", fmt.Errorf("media: app_id and server_secret required")
	}
	if len(serverSecret) != 32 {
		return "", fmt.Errorf("media: server_secret must be 32 characters")
	}
	privilege := map[int]int{
		token04.PrivilegeKeyLogin:   token04.PrivilegeEnable,
		token04.PrivilegeKeyPublish: token04.PrivilegeDisable,
	}
	if canPublish {
		privilege[token04.PrivilegeKeyPublish] = token04.PrivilegeEnable
	}
	payload := RtcRoomPayload{
		RoomID:    roomID,
		Privilege: privilege,
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("media: marshal payload: %w", err)
	}
	return token04.GenerateToken04(appID, userID, serverSecret, effectiveTimeSec, string(payloadJSON))
}
