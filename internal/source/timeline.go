package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"time"

	"archivesyncd/internal/state"
)

const (
	userByScreenNamePath = "/graphql/user-by-screen-name"
	userPostsPath        = "/graphql/user-posts"
)

type userResultEnvelope struct {
	Data struct {
		User struct {
			Result struct {
				RestID string `json:"rest_id"`
			} `json:"result"`
		} `json:"user"`
	} `json:"data"`
}

type timelineEnvelope struct {
	Data struct {
		User struct {
			Result struct {
				TimelineV2 struct {
					Timeline struct {
						Instructions []timelineInstruction `json:"instructions"`
					} `json:"timeline"`
				} `json:"timeline_v2"`
			} `json:"result"`
		} `json:"user"`
	} `json:"data"`
}

type timelineInstruction struct {
	Type    string           `json:"type"`
	Entries []timelineEntry  `json:"entries"`
}

type timelineEntry struct {
	EntryID string `json:"entryId"`
	Content struct {
		EntryType    string `json:"entryType"`
		CursorType   string `json:"cursorType"`
		Value        string `json:"value"`
		ItemContent  struct {
			PostResults struct {
				Result json.RawMessage `json:"result"`
			} `json:"tweet_results"`
		} `json:"itemContent"`
	} `json:"content"`
}

type postPayload struct {
	TypeName string          `json:"__typename"`
	RestID   string          `json:"rest_id"`
	Post     json.RawMessage `json:"tweet"` // present on PostWithVisibilityResults
	Legacy   struct {
		CreatedAt        string `json:"created_at"`
		ExtendedEntities struct {
			Media []mediaEntity `json:"media"`
		} `json:"extended_entities"`
		Entities struct {
			Media []mediaEntity `json:"media"`
		} `json:"entities"`
	} `json:"legacy"`
}

// postCreatedAtLayout is the source platform's fixed created_at format,
// e.g. "Wed Oct 10 20:19:24 +0000 2018".
const postCreatedAtLayout = "Mon Jan 02 15:04:05 -0700 2006"

type mediaEntity struct {
	Type          string `json:"type"` // "photo", "video", "animated_gif"
	MediaURLHTTPS string `json:"media_url_https"`
	VideoInfo     struct {
		Variants []videoVariant `json:"variants"`
	} `json:"video_info"`
}

type videoVariant struct {
	Bitrate     int    `json:"bitrate"`
	ContentType string `json:"content_type"`
	URL         string `json:"url"`
}

// resolveHandleToID resolves a screen-name to the platform's internal user
// id via the "user-by-screen-name" query (spec.md §4.2, step 1).
func (a *Adapter) resolveHandleToID(ctx context.Context, handle string) (string, error) {
	variables, _ := json.Marshal(map[string]any{"screen_name": handle})
	params := url.Values{
		"variables": {string(variables)},
	}

	env, err := a.requestWithFailover(ctx, userByScreenNamePath, params)
	if err != nil {
		return "", err
	}

	var parsed userResultEnvelope
	if err := json.Unmarshal(env.Data, &parsed); err != nil {
		return "", &GenericError{Err: fmt.Errorf("decode user-by-screen-name response: %w", err)}
	}
	if parsed.Data.User.Result.RestID == "" {
		return "", &GenericError{Err: fmt.Errorf("handle %q did not resolve to a user id", handle)}
	}
	return parsed.Data.User.Result.RestID, nil
}

// ListPostsWithMedia implements the Source Adapter's primary operation
// (spec.md §4.2): resolve handle -> id, then page the timeline up to
// PageLimit iterations of page size 20, threading the bottom cursor between
// pages, extracting only media-bearing posts.
func (a *Adapter) ListPostsWithMedia(ctx context.Context, p ListPostsParams) (ListPostsResult, error) {
	userID, err := a.resolveHandleToID(ctx, p.Handle)
	if err != nil {
		return ListPostsResult{}, err
	}

	var allPosts []Post
	seen := map[string]bool{}
	cursor := p.Cursor
	var bottomCursor string

	for page := 0; page < p.PageLimit; page++ {
		variables := map[string]any{
			"userId":  userID,
			"count":   pageSize,
			"cursor":  cursor,
			"reverse": p.Direction == DirectionNewer,
		}
		varJSON, _ := json.Marshal(variables)
		params := url.Values{"variables": {string(varJSON)}}

		env, err := a.requestWithFailover(ctx, userPostsPath, params)
		if err != nil {
			return ListPostsResult{}, err
		}

		var parsed timelineEnvelope
		if err := json.Unmarshal(env.Data, &parsed); err != nil {
			return ListPostsResult{}, &GenericError{Err: fmt.Errorf("decode user-posts response: %w", err)}
		}

		pagePosts, nextCursor := extractMediaPosts(parsed)
		for _, post := range pagePosts {
			if seen[post.ID] {
				continue
			}
			seen[post.ID] = true
			allPosts = append(allPosts, post)
		}

		if nextCursor == "" || nextCursor == cursor {
			bottomCursor = ""
			break
		}
		bottomCursor = nextCursor
		cursor = nextCursor
	}

	sort.Slice(allPosts, func(i, j int) bool {
		return postIDLess(allPosts[j].ID, allPosts[i].ID) // newest-first
	})

	result := ListPostsResult{Posts: allPosts}
	if p.Direction == DirectionOlder {
		result.NextCursor = bottomCursor
	}
	return result, nil
}

// extractMediaPosts walks every instruction's entries, keeps only
// media-bearing Post/PostWithVisibilityResults payloads, and reports the
// page's bottom cursor if present (spec.md §4.2).
func extractMediaPosts(env timelineEnvelope) ([]Post, string) {
	var posts []Post
	var bottomCursor string

	for _, instr := range env.Data.User.Result.TimelineV2.Timeline.Instructions {
		for _, entry := range instr.Entries {
			if entry.Content.CursorType == "Bottom" {
				bottomCursor = entry.Content.Value
				continue
			}
			raw := entry.Content.ItemContent.PostResults.Result
			if len(raw) == 0 {
				continue
			}
			if post, ok := extractPostMedia(raw); ok {
				posts = append(posts, post)
			}
		}
	}
	return posts, bottomCursor
}

// extractPostMedia decodes a single post payload, unwraps
// PostWithVisibilityResults, and returns the usable media it carries. A post
// with no usable media is dropped (spec.md §4.2).
func extractPostMedia(raw json.RawMessage) (Post, bool) {
	var payload postPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Post{}, false
	}

	if payload.TypeName == "PostWithVisibilityResults" && len(payload.Post) > 0 {
		if err := json.Unmarshal(payload.Post, &payload); err != nil {
			return Post{}, false
		}
	} else if payload.TypeName != "Post" && payload.TypeName != "PostWithVisibilityResults" {
		return Post{}, false
	}

	entities := payload.Legacy.ExtendedEntities.Media
	if len(entities) == 0 {
		entities = payload.Legacy.Entities.Media
	}

	var media []Media
	for _, ent := range entities {
		switch ent.Type {
		case "photo":
			if ent.MediaURLHTTPS != "" {
				media = append(media, Media{URL: ent.MediaURLHTTPS, Type: state.MediaPhoto})
			}
		case "video", "animated_gif":
			variant, ok := bestMP4Variant(ent.VideoInfo.Variants)
			if !ok {
				continue
			}
			mediaType := state.MediaVideo
			if ent.Type == "animated_gif" {
				mediaType = state.MediaGif
			}
			media = append(media, Media{URL: variant.URL, Type: mediaType})
		}
	}
	if len(media) == 0 {
		return Post{}, false
	}
	postedAt, _ := time.Parse(postCreatedAtLayout, payload.Legacy.CreatedAt)
	return Post{ID: payload.RestID, PostedAt: postedAt, Media: media}, true
}

// bestMP4Variant picks the highest-bitrate mp4 variant, per spec.md §4.2.
func bestMP4Variant(variants []videoVariant) (videoVariant, bool) {
	var best videoVariant
	found := false
	for _, v := range variants {
		if v.ContentType != "video/mp4" {
			continue
		}
		if !found || v.Bitrate > best.Bitrate {
			best = v
			found = true
		}
	}
	return best, found
}

// IDLess reports whether post id a sorts before post id b under the
// numeric-id ordering spec.md §3 and §4.5.d require for candidate merge.
func IDLess(a, b string) bool { return postIDLess(a, b) }

// postIDLess compares two numeric post ids as integers, falling back to
// lexicographic comparison if either fails to parse (ids are always
// numeric in practice per spec.md §3).
func postIDLess(a, b string) bool {
	ai, aerr := strconv.ParseInt(a, 10, 64)
	bi, berr := strconv.ParseInt(b, 10, 64)
	if aerr == nil && berr == nil {
		return ai < bi
	}
	return a < b
}
