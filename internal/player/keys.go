package player

// Key names accepted by HandleKey. Browser KeyboardEvent.key values and
// terminal key names both map onto these.
const (
	KeyEscape     = "Escape"
	KeySpace      = " "
	KeyArrowRight = "ArrowRight"
	KeyArrowLeft  = "ArrowLeft"
	KeyMute       = "m"
)

var keyAliases = map[string]string{
	"esc":   KeyEscape,
	"space": KeySpace,
	"right": KeyArrowRight,
	"left":  KeyArrowLeft,
	"M":     KeyMute,
}

func normalizeKey(key string) string {
	if k, ok := keyAliases[key]; ok {
		return k
	}
	return key
}

// HandleKey applies the keyboard contract and reports whether key was
// consumed.
func (p *Player) HandleKey(key string) bool {
	switch normalizeKey(key) {
	case KeyEscape:
		p.Close()
	case KeySpace:
		p.post(cmdToggle{})
	case KeyArrowRight:
		p.Next()
	case KeyArrowLeft:
		p.Previous()
	case KeyMute:
		p.ToggleMute()
	default:
		return false
	}
	return true
}
