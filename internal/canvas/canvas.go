// Package canvas renders emotion artifacts as framed text panels.
//
// Rendering is a pure lookup keyed by normalized emotion, so the same job
// always produces the same panel body; only the metadata footer varies with
// the supplied timestamp.
package canvas

import (
	"fmt"
	"strings"
	"time"
)

var emotionPanels = map[string]string{
	"happy": `
    ╔══════════════════════════════════════╗
    ║                                      ║
    ║           ╰(*´︶` + "`" + `*)╯                 ║
    ║                                      ║
    ║     ♪ ♫ HAPPINESS DETECTED ♫ ♪      ║
    ║                                      ║
    ║   ☆ﾟ.*･｡ﾟ✧*:..｡✧*:..｡✧.*･ﾟ☆       ║
    ║                                      ║
    ║   Your energy radiates positivity!   ║
    ║   Keep spreading those good vibes    ║
    ║                                      ║
    ╚══════════════════════════════════════╝
    `,
	"excited": `
    ╔══════════════════════════════════════╗
    ║                                      ║
    ║        ＼(◎o◎)／ EXCITEMENT!        ║
    ║                                      ║
    ║    ★━━━━━━━━★━━━━━━━━★              ║
    ║    ┊ ☆ ┊ ☆ ┊ ☆ ┊ ☆ ┊ ☆ ┊           ║
    ║    ★━━━━━━━━★━━━━━━━━★              ║
    ║                                      ║
    ║   Your enthusiasm is contagious!     ║
    ║   Channel this energy wisely!        ║
    ║                                      ║
    ╚══════════════════════════════════════╝
    `,
	"hopeful": `
    ╔══════════════════════════════════════╗
    ║                                      ║
    ║              ☀️                       ║
    ║           ／｜＼                      ║
    ║          ／ ｜ ＼                     ║
    ║             🌱                       ║
    ║                                      ║
    ║      ♡ HOPE BLOOMS WITHIN ♡         ║
    ║                                      ║
    ║   The seeds of tomorrow are          ║
    ║   planted in today's hope            ║
    ║                                      ║
    ╚══════════════════════════════════════╝
    `,
	"anxious": `
    ╔══════════════════════════════════════╗
    ║                                      ║
    ║           (・_・;)                   ║
    ║          ／|  |＼                    ║
    ║         ～～～～～～                  ║
    ║                                      ║
    ║      ◈ ANXIETY DETECTED ◈           ║
    ║                                      ║
    ║   Take a deep breath...              ║
    ║   ▓▓▓▓▓▓▓▓▓▓▓                        ║
    ║   One step at a time                 ║
    ║                                      ║
    ╚══════════════════════════════════════╝
    `,
	"stressed": `
    ╔══════════════════════════════════════╗
    ║                                      ║
    ║         (╯°□°)╯︵ ┻━┻               ║
    ║                                      ║
    ║     ▓▓▓  STRESS LEVEL: HIGH  ▓▓▓    ║
    ║     ████████████████████████████     ║
    ║                                      ║
    ║   Remember:                          ║
    ║   ┏━━━━━━━━━━━━━━━━━━━━━━┓          ║
    ║   ┃ This too shall pass  ┃          ║
    ║   ┗━━━━━━━━━━━━━━━━━━━━━━┛          ║
    ║                                      ║
    ╚══════════════════════════════════════╝
    `,
	"sad": `
    ╔══════════════════════════════════════╗
    ║                                      ║
    ║            (｡•́︿•̀｡)                 ║
    ║                                      ║
    ║          ｡ﾟ(ﾟ´ω` + "`" + `ﾟ)ﾟ｡                ║
    ║                                      ║
    ║      ♡ SADNESS ACKNOWLEDGED ♡        ║
    ║                                      ║
    ║   It's okay to feel this way         ║
    ║   Healing takes time                 ║
    ║   You are not alone ❤️               ║
    ║                                      ║
    ╚══════════════════════════════════════╝
    `,
	"angry": `
    ╔══════════════════════════════════════╗
    ║                                      ║
    ║          (╬ಠ益ಠ)                     ║
    ║         ／|  |＼                     ║
    ║        🔥    🔥                      ║
    ║                                      ║
    ║      ⚠ ANGER DETECTED ⚠             ║
    ║                                      ║
    ║   Channel this energy:               ║
    ║   ┌─────────────────────────┐        ║
    ║   │ Breathe → Process → Act │        ║
    ║   └─────────────────────────┘        ║
    ║                                      ║
    ╚══════════════════════════════════════╝
    `,
	"neutral": `
    ╔══════════════════════════════════════╗
    ║                                      ║
    ║           (・_・)                    ║
    ║                                      ║
    ║      ━━━━━ NEUTRAL ━━━━━            ║
    ║                                      ║
    ║   ┌────────────────────────┐         ║
    ║   │   Balanced & Present   │         ║
    ║   │        ≋≋≋≋≋≋          │         ║
    ║   │     Mindful Moment     │         ║
    ║   └────────────────────────┘         ║
    ║                                      ║
    ╚══════════════════════════════════════╝
    `,
	"tired": `
    ╔══════════════════════════════════════╗
    ║                                      ║
    ║          (－_－) zzZ                 ║
    ║                                      ║
    ║      ～～ FATIGUE MODE ～～          ║
    ║                                      ║
    ║   ▓▒░░░░░░░░░░░░░░░░░░░░░▒▓         ║
    ║            Energy: Low               ║
    ║                                      ║
    ║   Rest is productive too!            ║
    ║   Recharge to come back stronger     ║
    ║                                      ║
    ╚══════════════════════════════════════╝
    `,
	"grateful": `
    ╔══════════════════════════════════════╗
    ║                                      ║
    ║         (◕‿◕)♡                       ║
    ║                                      ║
    ║      ✿ GRATITUDE FLOWING ✿          ║
    ║                                      ║
    ║   ♡━━━━━━━━━━━━━━━━━━━━━━━━━♡        ║
    ║   │  Thank you for this moment  │   ║
    ║   ♡━━━━━━━━━━━━━━━━━━━━━━━━━♡        ║
    ║                                      ║
    ║   Gratitude transforms everything    ║
    ║                                      ║
    ╚══════════════════════════════════════╝
    `,
}

// Synonyms collapse onto the canonical panel key.
var emotionAliases = map[string]string{
	"joyful":       "happy",
	"elated":       "excited",
	"enthusiastic": "excited",
	"optimistic":   "hopeful",
	"worried":      "anxious",
	"nervous":      "anxious",
	"overwhelmed":  "stressed",
	"depressed":    "sad",
	"melancholic":  "sad",
	"furious":      "angry",
	"irritated":    "angry",
	"exhausted":    "tired",
	"fatigued":     "tired",
	"thankful":     "grateful",
	"appreciative": "grateful",
}

// Normalize maps an arbitrary emotion label onto a canonical panel key.
// Unrecognized labels collapse to "neutral".
func Normalize(emotion string) string {
	key := strings.ToLower(strings.TrimSpace(emotion))
	if canonical, ok := emotionAliases[key]; ok {
		key = canonical
	}
	if _, ok := emotionPanels[key]; !ok {
		return "neutral"
	}
	return key
}

// Generate renders the artifact for an emotion, stamped with the record id
// and generation time.
func Generate(emotion, recordID string, now time.Time) string {
	panel := emotionPanels[Normalize(emotion)]

	shortID := recordID
	if len(shortID) > 8 {
		shortID = shortID[:8]
	}

	timestamp := now.UTC().Format("2006-01-02 15:04:05 UTC")
	footer := fmt.Sprintf(`
    ╔══════════════════════════════════════╗
    ║  Sentient Planner - Emotion Canvas   ║
    ║  ID: %s                          ║
    ║  Generated: %s   ║
    ╚══════════════════════════════════════╝
        `, shortID, timestamp)

	return panel + footer
}
