package hypium

import (
	"strconv"
	"strings"
)

// KeyCode is an OpenHarmony input key code as understood by the
// device's power key service and the daemon's triggerCombineKeys.
type KeyCode int

// MaxKeyCode bounds the valid key code range.
const MaxKeyCode KeyCode = 3200

// Valid reports whether k is inside the key code range.
func (k KeyCode) Valid() bool { return k >= 0 && k <= MaxKeyCode }

const (
	KeyFn             KeyCode = 0
	KeyHome           KeyCode = 1
	KeyBack           KeyCode = 2
	KeyMediaPlayPause KeyCode = 10
	KeyMediaStop      KeyCode = 11
	KeyMediaNext      KeyCode = 12
	KeyMediaPrevious  KeyCode = 13
	KeyMediaRewind    KeyCode = 14
	KeyMediaFastFwd   KeyCode = 15
	KeyVolumeUp       KeyCode = 16
	KeyVolumeDown     KeyCode = 17
	KeyPower          KeyCode = 18
	KeyCamera         KeyCode = 19
	KeyVolumeMute     KeyCode = 22
	KeyMute           KeyCode = 23
	KeyBrightnessUp   KeyCode = 40
	KeyBrightnessDown KeyCode = 41

	Key0     KeyCode = 2000
	Key1     KeyCode = 2001
	Key2     KeyCode = 2002
	Key3     KeyCode = 2003
	Key4     KeyCode = 2004
	Key5     KeyCode = 2005
	Key6     KeyCode = 2006
	Key7     KeyCode = 2007
	Key8     KeyCode = 2008
	Key9     KeyCode = 2009
	KeyStar  KeyCode = 2010
	KeyPound KeyCode = 2011

	KeyDpadUp     KeyCode = 2012
	KeyDpadDown   KeyCode = 2013
	KeyDpadLeft   KeyCode = 2014
	KeyDpadRight  KeyCode = 2015
	KeyDpadCenter KeyCode = 2016

	KeyA KeyCode = 2017
	KeyB KeyCode = 2018
	KeyC KeyCode = 2019
	KeyD KeyCode = 2020
	KeyE KeyCode = 2021
	KeyF KeyCode = 2022
	KeyG KeyCode = 2023
	KeyH KeyCode = 2024
	KeyI KeyCode = 2025
	KeyJ KeyCode = 2026
	KeyK KeyCode = 2027
	KeyL KeyCode = 2028
	KeyM KeyCode = 2029
	KeyN KeyCode = 2030
	KeyO KeyCode = 2031
	KeyP KeyCode = 2032
	KeyQ KeyCode = 2033
	KeyR KeyCode = 2034
	KeyS KeyCode = 2035
	KeyT KeyCode = 2036
	KeyU KeyCode = 2037
	KeyV KeyCode = 2038
	KeyW KeyCode = 2039
	KeyX KeyCode = 2040
	KeyY KeyCode = 2041
	KeyZ KeyCode = 2042

	KeyComma      KeyCode = 2043
	KeyPeriod     KeyCode = 2044
	KeyAltLeft    KeyCode = 2045
	KeyAltRight   KeyCode = 2046
	KeyShiftLeft  KeyCode = 2047
	KeyShiftRight KeyCode = 2048
	KeyTab        KeyCode = 2049
	KeySpace      KeyCode = 2050
	KeyEnter      KeyCode = 2054
	KeyDel        KeyCode = 2055
	KeyMinus      KeyCode = 2057
	KeyEquals     KeyCode = 2058
	KeyPageUp     KeyCode = 2068
	KeyPageDown   KeyCode = 2069
	KeyEscape     KeyCode = 2070
	KeyCtrlLeft   KeyCode = 2072
	KeyCtrlRight  KeyCode = 2073
	KeyCapsLock   KeyCode = 2074
	KeyMetaLeft   KeyCode = 2076
	KeyMetaRight  KeyCode = 2077
	KeyInsert     KeyCode = 2083

	KeyF1  KeyCode = 2090
	KeyF2  KeyCode = 2091
	KeyF3  KeyCode = 2092
	KeyF4  KeyCode = 2093
	KeyF5  KeyCode = 2094
	KeyF6  KeyCode = 2095
	KeyF7  KeyCode = 2096
	KeyF8  KeyCode = 2097
	KeyF9  KeyCode = 2098
	KeyF10 KeyCode = 2099
	KeyF11 KeyCode = 2100
	KeyF12 KeyCode = 2101

	KeyNumLock KeyCode = 2102
	KeyNumpad0 KeyCode = 2103
	KeyNumpad1 KeyCode = 2104
	KeyNumpad2 KeyCode = 2105
	KeyNumpad3 KeyCode = 2106
	KeyNumpad4 KeyCode = 2107
	KeyNumpad5 KeyCode = 2108
	KeyNumpad6 KeyCode = 2109
	KeyNumpad7 KeyCode = 2110
	KeyNumpad8 KeyCode = 2111
	KeyNumpad9 KeyCode = 2112
)

// keyNames maps flow file key names to codes. Lookup is case
// insensitive through KeyCodeByName.
var keyNames = map[string]KeyCode{
	"fn":              KeyFn,
	"home":            KeyHome,
	"back":            KeyBack,
	"play":            KeyMediaPlayPause,
	"pause":           KeyMediaPlayPause,
	"media_stop":      KeyMediaStop,
	"media_next":      KeyMediaNext,
	"media_previous":  KeyMediaPrevious,
	"volume_up":       KeyVolumeUp,
	"volume_down":     KeyVolumeDown,
	"power":           KeyPower,
	"camera":          KeyCamera,
	"volume_mute":     KeyVolumeMute,
	"mute":            KeyMute,
	"brightness_up":   KeyBrightnessUp,
	"brightness_down": KeyBrightnessDown,
	"star":            KeyStar,
	"pound":           KeyPound,
	"dpad_up":         KeyDpadUp,
	"dpad_down":       KeyDpadDown,
	"dpad_left":       KeyDpadLeft,
	"dpad_right":      KeyDpadRight,
	"dpad_center":     KeyDpadCenter,
	"comma":           KeyComma,
	"period":          KeyPeriod,
	"alt":             KeyAltLeft,
	"shift":           KeyShiftLeft,
	"tab":             KeyTab,
	"space":           KeySpace,
	"enter":           KeyEnter,
	"delete":          KeyDel,
	"backspace":       KeyDel,
	"minus":           KeyMinus,
	"equals":          KeyEquals,
	"page_up":         KeyPageUp,
	"page_down":       KeyPageDown,
	"escape":          KeyEscape,
	"ctrl":            KeyCtrlLeft,
	"caps_lock":       KeyCapsLock,
	"meta":            KeyMetaLeft,
	"insert":          KeyInsert,
	"num_lock":        KeyNumLock,
}

func init() {
	for i := 0; i < 10; i++ {
		keyNames[strconv.Itoa(i)] = Key0 + KeyCode(i)
	}
	for i := 0; i < 26; i++ {
		keyNames[string(rune('a'+i))] = KeyA + KeyCode(i)
	}
	for i := 0; i < 12; i++ {
		keyNames["f"+strconv.Itoa(i+1)] = KeyF1 + KeyCode(i)
	}
}

// KeyCodeByName resolves a human readable key name such as "home",
// "volume up" or "enter" to its code. Lookup is case insensitive and
// treats spaces as underscores.
func KeyCodeByName(name string) (KeyCode, bool) {
	name = strings.ReplaceAll(strings.ToLower(name), " ", "_")
	k, ok := keyNames[name]
	return k, ok
}
