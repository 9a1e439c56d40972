package state

import (
	"fmt"
	"strings"
)

// BuildContext summarizes the state in prose for generation prompts.
func BuildContext(s *GameState) string {
	locationName, locationDescription := "未知之地", "一片迷雾笼罩的区域"
	if loc, ok := s.World.CurrentLocation(); ok {
		locationName, locationDescription = loc.Name, loc.Description
	}

	rumor := "最近江湖上风平浪静。"
	if n := len(s.EventQueue); n > 0 {
		last := s.EventQueue[n-1]
		rumor = fmt.Sprintf("最近江湖上流传着一则消息：%s - %s", last.Title, last.Description)
	}

	var b strings.Builder
	b.WriteString("---\n**游戏世界背景**\n\n")
	fmt.Fprintf(&b, "你是一位名叫 **%s** 的江湖人士。\n", s.Player.Name)
	fmt.Fprintf(&b, "*   **境界**: %s (等级 %d)\n", s.Player.Realm, s.Player.Level)
	fmt.Fprintf(&b, "*   **当前位置**: 你身处 %s，这里是%s。\n", locationName, locationDescription)
	fmt.Fprintf(&b, "*   **当前时辰**: %s\n", s.Time.Format())
	fmt.Fprintf(&b, "*   **近期传闻**: %s\n---", rumor)
	return b.String()
}
