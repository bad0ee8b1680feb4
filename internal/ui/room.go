package ui

import (
	"fmt"
)

// RoomInfo is the share-this-room box shown to the initiator while waiting.
type RoomInfo struct {
	RoomID string
	Server string
}

func (r *RoomInfo) View() string {
	joinHint := fmt.Sprintf("vstream call %s --server %s", r.RoomID, r.Server)

	content := fmt.Sprintf("%s Room Ready!\n\n%s Room ID:  %s\n%s Join with: %s",
		IconSuccess,
		IconCopy, BoldStyle.Foreground(Primary).Render(r.RoomID),
		IconRoom, MutedStyle.Render(joinHint),
	)

	return RoomBoxStyle.Render(content)
}

// RenderRoomInfo outputs the room box directly to stdout.
func RenderRoomInfo(roomID, server string) {
	fmt.Println((&RoomInfo{RoomID: roomID, Server: server}).View())
}
