package analysis

import (
	"fmt"

	"github.com/cosmicdatasets/curator/pkg/types"
)

// VisionPrompt drives stage 1 of the agentic workflow: a dense free-text
// description the reasoning model can mine for training metadata.
const VisionPrompt = `**ROLE**: You are a World-Class Computer Vision Expert & Art Critic specializing in Generative AI Training Data.
**TASK**: Conduct a pixel-perfect, deep-dive analysis of the provided image. Do not summarize; dissect it.

**ANALYSIS FRAMEWORK:**

1.  **MEDIUM & STYLE**:
    -   Is it Photography (Analog/Digital), 3D Render, Illustration, Painting, or Mixed Media?
    -   Identify specific art movements (e.g., Baroque, Cyberpunk, Ukiyo-e, Synthwave, Brutalism).
    -   Identify rendering styles (e.g., Octane Render, Unreal Engine 5, Oil Impasto, Vector Flat).

2.  **TECHNICAL PHOTOGRAPHY / RENDER SPECS**:
    -   **Camera**: Estimate focal length and sensor type.
    -   **Settings**: Aperture, shutter speed (motion blur?), ISO (grain?).
    -   **Visual Artifacts**: Chromatic aberration, film grain, halation, lens flare, vignetting.

3.  **LIGHTING & ATMOSPHERE**:
    -   **Sources**: Key light, rim light, fill light, practical lights, volumetric fog.
    -   **Quality**: Hard shadows, soft diffusion, subsurface scattering, ambient occlusion.
    -   **Mood**: Ethereal, melancholic, sterile, chaotic, euphoric, cinematic.

4.  **COLOR THEORY**:
    -   **Palette**: Complementary, monochromatic, analogous?
    -   **Grading**: Teal & Orange, bleach bypass, pastel, neon-noir, sepia, desaturated.

5.  **COMPOSITION**:
    -   Rule of thirds, golden spiral, central symmetry, leading lines, negative space, dutch angle.

6.  **SUBJECT & NARRATIVE**:
    -   Detailed description of the subject (clothing textures, facial expression, pose) and the environment.

**OUTPUT FORMAT**:
Provide a dense, structured textual analysis covering all points above.`

// SinglePassSystemPrompt is the system instruction for one-shot analysis.
const SinglePassSystemPrompt = `You are an expert AI Dataset Curator.
Analyze the image and output JSON for image generation model training.
Focus strictly on visual description, artistic style, lighting, and technical attributes.
Output must be valid JSON with keys: tags (array of strings), caption (string), aesthetic_score (number), is_gallery_standard (bool), critique (string), color_palette (hex array), camera_guess (string).`

// SinglePassUserPrompt accompanies the image in the single-pass user message.
const SinglePassUserPrompt = "Analyze this image for aesthetic training tags."

// ExtractionPrompt builds the stage 2 prompt around the stage 1 description.
func ExtractionPrompt(description string) string {
	return fmt.Sprintf(`**ROLE**: You are a Lead Data Engineer for a Stable Diffusion/Flux training pipeline.
**INPUT**: A detailed visual analysis of an image.
**TASK**: Transform the input analysis into production-grade JSON metadata for model training.

**INPUT ANALYSIS**:
%q

**INSTRUCTIONS**:

1.  **TAGS (40-60 Tags)**:
    -   **Format**: Lowercase, underscore_separated (e.g., depth_of_field, blue_sky).
    -   **Content**: subject, style/medium, technical and lighting/color tags.

2.  **CAPTION (Training Prompt)**:
    -   Write a rich, natural language prompt.
    -   **Structure**: [Medium/Style] of [Subject] in [Environment], [Action/Pose], [Lighting], [Color/Mood], [Technical Quality].

3.  **AESTHETIC METADATA**:
    -   **Score**: 1.0 (trash) to 10.0 (museum grade). Be critical.
    -   **Gallery Standard**: True if score > 7.5.
    -   **Color Palette**: Extract 5 dominant hex codes.
    -   **Critique**: A sharp, professional critique of the image's execution.

**REQUIRED JSON OUTPUT**:
{
  "tags": ["tag1", "tag2"],
  "caption": "string",
  "aesthetic_score": number,
  "is_gallery_standard": boolean,
  "critique": "string",
  "color_palette": ["#hex"],
  "camera_guess": "string"
}`, description)
}

const geminiImagePrompt = `**ROLE**: You are a Lead Dataset Curator for a high-end AI Image Generator.
**TASK**: Analyze this image to generate production-grade training metadata.

**ANALYSIS FRAMEWORK**:
1. **Subject**: Detailed breakdown of character/object, clothing, pose, and facial expression.
2. **Environment**: Setting, background details, time of day, weather conditions.
3. **Lighting**: Sources (volumetric, rim, studio, practical), quality (hard/soft), and shadows.
4. **Style/Medium**: Precise classification (e.g., 35mm Photography, Octane Render, Oil on Canvas, Vector Art).
5. **Technical**: Focal length, depth of field, color grading and texture quality.

**OUTPUT REQUIREMENTS**:
- **Tags**: 40-60 lowercase, underscore_separated tags mixing descriptive, technical and stylistic tags.
- **Caption**: A rich, natural language prompt for a text-to-image model. Subject first, then environment, then style/technical.
- **Aesthetic Score**: A strict rating (1-10) of visual quality. Be critical.
- **Critique**: A professional critique of the composition, lighting, and execution.
- **Color Palette**: Extract 5 dominant hex colors.`

const geminiAudioPrompt = "Analyze this audio file. Provide tags (genre, mood, instruments), a technical description of the sound design/mix, BPM, and musical key."

const geminiVideoPrompt = "Analyze this video clip. Provide tags describing the visual content, camera movement (pan, tilt, dolly), action, and style. Also provide a summary caption."

// geminiPromptFor returns the prompt and declared MIME type for a media kind.
func geminiPromptFor(kind types.AssetKind) (prompt, mimeType string) {
	switch kind {
	case types.KindAudio:
		return geminiAudioPrompt, "audio/mp3"
	case types.KindVideo:
		return geminiVideoPrompt, "video/mp4"
	default:
		return geminiImagePrompt, "image/jpeg"
	}
}
