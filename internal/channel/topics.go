package channel

// ChatTopic carries chat lines and enter/exit notices of a room.
func ChatTopic(roomID string) string {
	return "/sub/games/chat/" + roomID
}

// GameTopic carries pick and state broadcasts of a game.
func GameTopic(gameID string) string {
	return "/sub/games/" + gameID
}

func ChatDestination(roomID string) string {
	return "/pub/games/room/" + roomID + "/chat"
}

func PickCardDestination(gameID string) string {
	return "/pub/games/" + gameID + "/pick-card"
}
