package sources

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/deusflow/dailybrief/internal/news"
)

func TestRedditSkipsStickiedAndBuildsPermalinks(t *testing.T) {
	var gotUA, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/r/artificial/hot.json":
			gotUA = r.Header.Get("User-Agent")
			gotQuery = r.URL.RawQuery
			fmt.Fprint(w, `{"data":{"children":[
				{"kind":"t3","data":{"title":"Pinned rules","stickied":true,"permalink":"/r/artificial/comments/0/rules/"}},
				{"kind":"t3","data":{"title":"Agents are here","permalink":"/r/artificial/comments/1/agents/","score":42,"num_comments":7,"author":"alice","selftext":"long body"}},
				{"kind":"t3","data":{"title":"Link post","url":"https://example.com/x","score":5}}
			]}}`)
		case "/r/artificial/comments/1/agents.json":
			fmt.Fprint(w, `[{"data":{"children":[]}},{"data":{"children":[
				{"kind":"t1","data":{"author":"bob","body":"This is a thoughtful comment.","score":3}},
				{"kind":"t1","data":{"author":"eve","body":"short"}},
				{"kind":"more","data":{"body":"ignored because not a comment"}}
			]}}]`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	r := NewReddit([]string{"artificial"}, 5, "day", "brief-bot", time.Second, 0)
	r.BaseURL = srv.URL

	topics, err := r.Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(topics) != 2 {
		t.Fatalf("expected 2 topics, got %d: %+v", len(topics), topics)
	}
	if gotUA != "brief-bot" || !strings.Contains(gotQuery, "limit=5") || !strings.Contains(gotQuery, "t=day") {
		t.Errorf("unexpected request: ua=%q query=%q", gotUA, gotQuery)
	}
	first := topics[0]
	if first.URL != srv.URL+"/r/artificial/comments/1/agents/" || first.Source != "Reddit r/artificial" || first.Score != 42 {
		t.Errorf("unexpected topic: %+v", first)
	}
	if topics[1].URL != "https://example.com/x" || topics[1].Author != "[deleted]" {
		t.Errorf("expected url fallback and deleted author, got %+v", topics[1])
	}

	comments, err := r.FetchComments(context.Background(), first, 30)
	if err != nil {
		t.Fatalf("comments: %v", err)
	}
	if len(comments) != 1 || comments[0].Author != "bob" || comments[0].Score != 3 {
		t.Errorf("unexpected comments: %+v", comments)
	}
}

func TestRedditFailingSubredditIsSkipped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/r/broken/") {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"data":{"children":[{"kind":"t3","data":{"title":"ok","permalink":"/r/ok/1/"}}]}}`)
	}))
	defer srv.Close()

	r := NewReddit([]string{"broken", "ok"}, 5, "day", "", time.Second, 0)
	r.BaseURL = srv.URL
	topics, err := r.Fetch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(topics) != 1 || topics[0].Title != "ok" {
		t.Errorf("expected only the healthy subreddit, got %+v", topics)
	}
}

func TestHackerNewsFiltersAIStoriesAndLoadsComments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/topstories.json":
			fmt.Fprint(w, `[1,2,3]`)
		case "/item/1.json":
			fmt.Fprint(w, `{"id":1,"title":"New LLM agent framework","score":120,"descendants":40,"by":"pg","kids":[10,11,12]}`)
		case "/item/2.json":
			fmt.Fprint(w, `{"id":2,"title":"Gardening tips said to help","url":"https://garden.example","score":500}`)
		case "/item/3.json":
			fmt.Fprint(w, `{"id":3,"title":"OpenAI releases model","url":"https://openai.example/post","score":90}`)
		case "/item/10.json":
			fmt.Fprint(w, `{"id":10,"by":"dang","text":"<p>Interesting &amp; useful work here</p>"}`)
		case "/item/11.json":
			fmt.Fprint(w, `{"id":11,"deleted":true}`)
		case "/item/12.json":
			fmt.Fprint(w, `{"id":12,"by":"x","text":"meh"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	h := NewHackerNews(srv.URL, 30, "", time.Second)
	h.ItemDelay = 0

	topics, err := h.Fetch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(topics) != 2 {
		t.Fatalf("expected 2 AI stories, got %+v", topics)
	}
	if topics[0].URL != "https://news.ycombinator.com/item?id=1" || topics[0].ExternalID != "1" || topics[0].CommentsCount != 40 {
		t.Errorf("unexpected first story: %+v", topics[0])
	}

	comments, err := h.FetchComments(context.Background(), topics[0], 30)
	if err != nil {
		t.Fatal(err)
	}
	if len(comments) != 1 || comments[0].Text != "Interesting & useful work here" || comments[0].Score != 0 {
		t.Errorf("unexpected comments: %+v", comments)
	}
}

func TestStoryIDFromURL(t *testing.T) {
	id, err := storyID(news.Topic{URL: "https://news.ycombinator.com/item?id=4242&p=2"})
	if err != nil || id != 4242 {
		t.Errorf("expected 4242, got %d (%v)", id, err)
	}
	if _, err := storyID(news.Topic{URL: "https://example.com"}); err == nil {
		t.Error("expected error without id")
	}
}

func TestChinaNewsKeepsFeedOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?><rss version="2.0"><channel><title>cn</title>
<item><title>第一条</title><link>https://cn.example/1</link><description>&lt;b&gt;人工智能&lt;/b&gt; 报道</description></item>
<item><title>第二条</title><link>https://cn.example/2</link></item>
<item><title>第三条</title><link>https://cn.example/3</link></item>
</channel></rss>`)
	}))
	defer srv.Close()

	c := NewChinaNews([]string{srv.URL}, 2, "", time.Second, 0)
	topics, err := c.Fetch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(topics) != 2 || topics[0].Title != "第一条" || topics[1].Title != "第二条" {
		t.Fatalf("unexpected topics: %+v", topics)
	}
	if topics[0].Score != 100 || topics[0].Author != "China News" || topics[0].Excerpt != "人工智能 报道" {
		t.Errorf("unexpected fields: %+v", topics[0])
	}
}

func TestTwitterScoresAndRequiresToken(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		fmt.Fprint(w, `{"data":[{"id":"99","text":"Agents everywhere","author_id":"7","public_metrics":{"like_count":10,"retweet_count":4,"reply_count":2}}]}`)
	}))
	defer srv.Close()

	tw := NewTwitter("tok", []string{"AI agents"}, 10, time.Second, 0)
	tw.SearchURL = srv.URL
	topics, err := tw.Fetch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if auth != "Bearer tok" {
		t.Errorf("expected bearer header, got %q", auth)
	}
	if len(topics) != 1 || topics[0].Score != 18 || topics[0].Title != "Agents everywhere..." ||
		topics[0].URL != "https://twitter.com/i/web/status/99" {
		t.Errorf("unexpected topic: %+v", topics)
	}

	off := NewTwitter("", []string{"AI agents"}, 10, time.Second, 0)
	off.SearchURL = srv.URL
	if got, _ := off.Fetch(context.Background()); len(got) != 0 {
		t.Error("expected no topics without a token")
	}
}

func TestMoltbookScrapesLinks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
			<a href="/login">Log in to your account now</a>
			<a href="#top">Back to the top of page</a>
			<a href="/p/1">Short</a>
			<a href="/p/2">Agents that write their own tools</a>
			<a href="/p/2">Agents that write their own tools</a>
			<a href="https://other.example/x">A long external discussion link</a>
		</body></html>`)
	}))
	defer srv.Close()

	m := NewMoltbook([]string{srv.URL + "/"}, 20, "", time.Second, 0)
	topics, err := m.Fetch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(topics) != 2 {
		t.Fatalf("expected 2 links, got %+v", topics)
	}
	if topics[0].URL != srv.URL+"/p/2" || topics[1].URL != "https://other.example/x" {
		t.Errorf("unexpected urls: %+v", topics)
	}
}

type fakeFetcher struct {
	name   string
	topics []news.Topic
	err    error
}

func (f fakeFetcher) Name() string { return f.name }
func (f fakeFetcher) Fetch(context.Context) ([]news.Topic, error) {
	return append([]news.Topic(nil), f.topics...), f.err
}

func TestAggregatorSortsTrimsAndOrders(t *testing.T) {
	agg := NewAggregator([]Fetcher{
		fakeFetcher{name: "chinanews", topics: []news.Topic{{Title: "c1", Score: 100}, {Title: "c2", Score: 100}, {Title: "c3", Score: 100}}},
		fakeFetcher{name: "hackernews", err: errors.New("down")},
		fakeFetcher{name: "reddit", topics: []news.Topic{{Title: "low", Score: 1}, {Title: "high", Score: 50}, {Title: "mid", Score: 10}, {Title: "mid2", Score: 10}}},
	}, 3, map[string]int{"chinanews": 1})

	if got := strings.Join(agg.Names(), ","); got != "reddit,hackernews,chinanews" {
		t.Errorf("unexpected order: %s", got)
	}

	results := agg.FetchAll(context.Background())
	if len(results["hackernews"]) != 0 || results["hackernews"] == nil {
		t.Errorf("expected empty non-nil list for failing source, got %#v", results["hackernews"])
	}
	reddit := results["reddit"]
	if len(reddit) != 3 || reddit[0].Title != "high" || reddit[1].Title != "mid" || reddit[2].Title != "mid2" {
		t.Errorf("expected stable score-desc top 3, got %+v", reddit)
	}
	if len(results["chinanews"]) != 1 || results["chinanews"][0].Title != "c1" {
		t.Errorf("expected top_n override for chinanews, got %+v", results["chinanews"])
	}

	flat := agg.Flatten(results)
	if len(flat) != 4 || flat[0].Title != "high" || flat[3].Title != "c1" {
		t.Errorf("unexpected flatten: %+v", flat)
	}
}

func TestAggregatorCommentFetcherLookup(t *testing.T) {
	r := NewReddit(nil, 1, "day", "", time.Second, 0)
	agg := NewAggregator([]Fetcher{r, fakeFetcher{name: "chinanews"}}, 3, nil)
	if _, ok := agg.CommentFetcher("reddit"); !ok {
		t.Error("expected reddit comment fetcher")
	}
	if _, ok := agg.CommentFetcher("chinanews"); ok {
		t.Error("chinanews has no comments")
	}
}
