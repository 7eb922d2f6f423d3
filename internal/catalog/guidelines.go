package catalog

// guidelines holds format-specific structural guidance appended to prompts.
var guidelines = map[string]string{
	"twitter-thread": `- Start with a compelling hook
- Use numbered tweets (1/n format)
- Keep each tweet under 280 characters
- End with a call-to-action
- Use relevant hashtags sparingly`,

	"linkedin-post": `- Start with a professional hook
- Use line breaks for readability
- Include 3-5 relevant hashtags at the end
- Add a call-to-action for engagement`,

	"instagram-caption": `- Start with an engaging hook
- Use emojis strategically
- Include 10-15 relevant hashtags
- Add a clear call-to-action`,

	"email-newsletter": `- Include a compelling subject line
- Use clear sections with headers
- Add a personal touch
- Include actionable takeaways`,

	"youtube-script": `- Include intro, main content, and outro
- Add timestamps for key sections
- Include engagement prompts
- End with subscribe CTA`,

	"blog-summary": `- Start with a compelling introduction
- Use bullet points for key insights
- Include actionable takeaways
- End with a conclusion`,
}

// Guideline returns the structural guidance for a format.
// Formats without specific guidance return an empty string.
func Guideline(formatID string) string {
	return guidelines[formatID]
}
