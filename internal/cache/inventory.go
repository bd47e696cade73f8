package cache

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
)

// Segment names. Every cached entry lives under one of these.
const (
	SegmentFeed          = "feed"
	SegmentCommunityFeed = "community_feed"
	SegmentSearch        = "search"
	SegmentCommunities   = "communities"
)

const versionKeySuffix = "version"

// FeedSegment names one page of the global feed.
func FeedSegment(sort, cursor string, limit int) string {
	return fmt.Sprintf("%s:%s:%d:%s", SegmentFeed, sort, limit, digest(cursor))
}

// CommunityFeedSegment names one page of a community feed.
func CommunityFeedSegment(communityID uint, sort, cursor string, limit int) string {
	return fmt.Sprintf("%s:%d:%s:%d:%s", SegmentCommunityFeed, communityID, sort, limit, digest(cursor))
}

// SearchSegment names one page of search results. The query is hashed so
// user input never shapes the key.
func SearchSegment(query, sort, cursor string, limit int) string {
	return fmt.Sprintf("%s:%s:%s:%d:%s", SegmentSearch, digest(strings.ToLower(query)), sort, limit, digest(cursor))
}

// CommunitiesSegment names the community listing.
func CommunitiesSegment(includeHidden bool) string {
	if includeHidden {
		return SegmentCommunities + ":all"
	}
	return SegmentCommunities + ":visible"
}

// SegmentName returns the leading name of a segment, used as a metric label.
func SegmentName(segment string) string {
	name, _, _ := strings.Cut(segment, ":")
	return name
}

func digest(s string) string {
	if s == "" {
		return "-"
	}
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:8])
}
