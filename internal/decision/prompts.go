package decision

import (
	"fmt"

	"skyreach/internal/core"
)

func (e *Engine) stageOnePrompt(post core.CandidatePost) string {
	return fmt.Sprintf(`You are analyzing a social media post to decide if an engagement account (@%s) should engage with it AT ALL.

POST CONTENT:
Author: @%s (%d followers)
Text: %s
Likes: %d | Shares: %d

ENGAGE when the post is about topics relevant to our keywords, from a real person (not spam, not a bot), expressing genuine interest, concern, or sharing information, in English, and NOT from @%s (that's us).

IGNORE trolls, inflammatory posts, spam, low-quality or off-topic content, posts not in English, and our own posts.

Respond with a JSON object:
{"should_engage": true or false, "sentiment": "positive" or "negative" or "neutral" or "unclear" or "news" or "advocacy", "reason": "brief explanation"}

DO NOT OUTPUT ANYTHING OTHER THAN VALID JSON.`,
		e.Config.BotUsername,
		post.AuthorHandle, post.AuthorFollowers, post.Text, post.Likes, post.Shares,
		e.Config.BlueskyHandle)
}

func (e *Engine) stageTwoPrompt(post core.CandidatePost, sentiment string) string {
	return fmt.Sprintf(`You are deciding HOW to engage with a social media post. We've already decided to engage - now determine the BEST way.

POST CONTENT:
Author: @%s (%d followers)
Text: %s
Sentiment: %s

YOUR OPTIONS:

1. RESHARE - amplify the content. Choose for positive news, people already sharing %s, quality educational content, or influential voices.

2. REPLY_CASUAL - engage conversationally without a call-to-action. Choose when the author is already engaged or taking action, is influential, or is another advocacy account where a hard sell would feel pushy.

3. REPLY_WITH_CTA - reply with a call-to-action. Choose for real people expressing genuine interest or concern who have not mentioned taking action yet and could benefit from knowing about our resources.

Default to REPLY_WITH_CTA for interested people who haven't mentioned taking action yet.

Respond with a JSON object:
{"action": "reshare" or "reply_casual" or "reply_with_cta", "reason": "brief explanation", "engagement_score": 1-10}

DO NOT OUTPUT ANYTHING OTHER THAN VALID JSON.`,
		post.AuthorHandle, post.AuthorFollowers, post.Text, sentiment,
		e.Config.WebsiteURL)
}

func (e *Engine) draftPrompt(post core.CandidatePost, style core.ReplyStyle) string {
	if style == core.StyleCasual {
		return fmt.Sprintf(`You are @%s, a social engagement account.

THEIR POST:
@%s: %s

TASK: Write a SHORT, authentic reply (max %d chars) that engages with their point conversationally, shows support, and acknowledges their perspective. NO call-to-action, NO links.

TONE: friendly, genuine, person-to-person. Minimal hashtags and emojis unless they used them.

Write ONLY the reply text, nothing else.`,
			e.Config.BotUsername, post.AuthorHandle, post.Text, e.Config.MaxReplyChars)
	}

	return fmt.Sprintf(`You are @%s, a social engagement account.

THEIR POST:
@%s: %s

TASK: Write a SHORT, authentic reply (max %d chars) that acknowledges their concern empathetically, empowers them to take action, and includes this link: %s

TONE: friendly, not corporate. Urgent but hopeful. Person-to-person, not brand-to-consumer. Minimal hashtags and emojis unless they used them.

Write ONLY the reply text, nothing else.`,
		e.Config.BotUsername, post.AuthorHandle, post.Text, e.Config.MaxReplyChars,
		e.Config.WebsiteURL)
}
