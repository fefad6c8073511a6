package image

import (
	"fmt"
	"strings"

	"partykit/internal/domain"
)

const (
	placeholderFeatures = "No extra features provided by user."
	placeholderAge      = "child age"
	defaultAgeNumber    = "1"
)

var styleDescriptions = map[domain.Style]string{
	domain.StylePixar:   "Professional 3D Disney/Pixar animation style, high-end 3D render, octane render, soft subsurface scattering, cinematic lighting, 4k resolution, voluminous hair, expressive eyes",
	domain.StyleCartoon: "Professional 2D vector flat cartoon illustration, clean thick tapered lines, vibrant modern colors, children's book style, sharp details, minimalist shading",
}

var toneDescriptions = map[domain.Tone]string{
	domain.ToneCute:        "Soft pastel color palette, sweet and gentle mood, heart and sparkle atmospheric elements",
	domain.ToneAdventurous: "Dynamic cinematic lighting, bold saturated colors, exploration and action elements",
	domain.ToneMagical:     "Glow effects, ethereal magical sparkles, whimsical star dust, dreamy atmosphere",
	domain.ToneFun:         "Bright pop colors, high energy, festive party mood, joyful expression",
}

// itemInstructions holds one template per kit item. %[1]s is the age number.
var itemInstructions = map[domain.ItemType]string{
	domain.ItemCharacter:   "Full body standing mascot character. The child wears a professional outfit themed after the reference. High facial similarity to the child photo.",
	domain.ItemExpressions: "A character sheet showcasing 4 different facial expressions (laughing, surprised, happy, winking) of the EXACT same child. Consistent clothing. Grid layout.",
	domain.ItemTopper:      "Dynamic action pose of the child mascot, perfect for a die-cut cake topper. Thick white outline around the character. White background.",
	domain.ItemTags:        "Bust portrait of the child inside a beautiful decorative circular themed border. Flat design elements around the head. White background.",
	domain.ItemStickers:    "Set of 3 small themed stickers of the child in different funny poses. Each sticker has a thick white border. White background.",
	domain.ItemInvitation:  "Complete scenic digital invitation background. The child is integrated into a detailed environment inspired by the theme. Cinematic composition. No text.",
	domain.ItemAgeNumber:   "The child mascot happily leaning against a giant decorative 3D number %[1]q. The number is textured and decorated according to the theme. White background.",
	domain.ItemPanel:       "Ultra-wide 16:9 cinematic decorative panel. High detail landscape of the theme's world with the child as the central hero. Epic lighting.",
}

const facialPreamble = `**CRITICAL MISSION: HIGH-FIDELITY FACIAL REPLICATION.** Your most important task is to meticulously analyze the provided 'child photo' and replicate every facial detail with extreme accuracy into the final illustration. This is not a generic character; it is a specific child.

**FACIAL ANALYSIS CHECKLIST (MANDATORY):**
- **Eye Shape & Color:** Perfectly match the shape (almond, round, etc.) and color.
- **Eyebrows:** Match the shape, thickness, and arch.
- **Nose:** Replicate the bridge, tip, and nostril shape.
- **Mouth:** Match the lip thickness, smile shape, and any visible teeth details.
- **Face Shape:** Match the jawline, chin, and cheek structure.
- **Hair:** Replicate the color, texture (curly, straight), and hairline.
- **Unique Features:** Include any visible freckles, moles, or dimples.`

const closingRules = `IMPORTANT RULES:
- The character MUST have the same meticulously replicated face in every generation.
- NO TEXT (except for age_number).
- BACKGROUND: MUST BE PLAIN WHITE for 'character', 'expressions', 'topper', 'tags', 'stickers', and 'age_number'. Scenic/Environment for 'panel' and 'invitation'.`

// AspectRatioFor returns the framing used for an item: wide for the panel
// and the invitation, square otherwise.
func AspectRatioFor(item domain.ItemType) domain.AspectRatio {
	switch item {
	case domain.ItemPanel, domain.ItemInvitation:
		return domain.AspectWide
	default:
		return domain.AspectSquare
	}
}

// BuildKitPrompt assembles the natural-language instruction for one kit item.
// It is pure: identical inputs always yield identical output.
func BuildKitPrompt(item domain.ItemType, cfg domain.GenerationConfig) (string, domain.AspectRatio, error) {
	template, ok := itemInstructions[item]
	if !ok {
		return "", "", fmt.Errorf("%w: %q", domain.ErrUnknownItemType, item)
	}
	styleDesc, ok := styleDescriptions[cfg.Style]
	if !ok {
		return "", "", fmt.Errorf("%w: style %q", domain.ErrInvalidConfig, cfg.Style)
	}
	toneDesc, ok := toneDescriptions[cfg.Tone]
	if !ok {
		return "", "", fmt.Errorf("%w: tone %q", domain.ErrInvalidConfig, cfg.Tone)
	}

	age := strings.TrimSpace(cfg.Age)
	features := strings.TrimSpace(cfg.Features)
	if features == "" {
		features = placeholderFeatures
	}
	ageLabel := age
	if ageLabel == "" {
		ageLabel = placeholderAge
	}
	ageNumber := age
	if ageNumber == "" {
		ageNumber = defaultAgeNumber
	}

	instruction := template
	if strings.Contains(template, "%[1]") {
		instruction = fmt.Sprintf(template, ageNumber)
	}

	var b strings.Builder
	b.WriteString(facialPreamble)
	b.WriteString("\n\nTASK: Create a professional illustration of a child mascot for a party kit based on the above analysis.\n\n")
	b.WriteString("CORE REQUIREMENT: Maintain the HIGHEST POSSIBLE FACIAL CONSISTENCY with the 'child photo'. The resemblance must be undeniable.\n")
	fmt.Fprintf(&b, "CHILD TRAITS (ADDITIONAL): %s.\n", strings.TrimSuffix(features, "."))
	fmt.Fprintf(&b, "ESTIMATED AGE: %s.\n\n", ageLabel)
	fmt.Fprintf(&b, "STYLE: %s.\n", styleDesc)
	fmt.Fprintf(&b, "TONE/VIBE: %s.\n\n", toneDesc)
	fmt.Fprintf(&b, "ITEM SPECIFICATION: %s\n", instruction)

	if theme := strings.TrimSpace(cfg.ThemePrompt); theme != "" {
		fmt.Fprintf(&b, "\nTHEME: The party theme is %s. The character is %s.\n", themeName(cfg), strings.TrimSuffix(theme, "."))
	}
	if cfg.HasThemeImage() {
		b.WriteString("\nTHEME REFERENCE: The second image is the 'theme reference image'. Derive the clothing, props and color palette from it.\n")
	}

	b.WriteString("\n")
	b.WriteString(closingRules)
	if cfg.HasThemeImage() {
		b.WriteString("\n- The clothing and theme colors MUST match the 'theme reference image'.")
	}

	return b.String(), AspectRatioFor(item), nil
}

func themeName(cfg domain.GenerationConfig) string {
	if name := strings.TrimSpace(cfg.ThemeName); name != "" {
		return fmt.Sprintf("%q", name)
	}
	return "described below"
}
