package stats

import (
	"math"
	"sort"
	"time"

	"github.com/amitxd75/github-api-backend/internal/models"
)

// Event types the activity counters care about. Everything else in the
// stream is ignored.
const (
	eventPush        = "PushEvent"
	eventPullRequest = "PullRequestEvent"
	eventIssues      = "IssuesEvent"
)

// recentActivityWindow bounds the recentRepoActivity counter.
const recentActivityWindow = 30 * 24 * time.Hour

// maxTopLanguages caps the ranked language breakdown.
const maxTopLanguages = 5

// Aggregate fuses the user profile, repository listing, event stream and
// per-repository language bytes into one immutable StatsRecord. It is a
// pure function of its inputs and the clock.
func Aggregate(user *models.User, repos []models.Repo, events []models.Event, languages map[string]map[string]int64) models.StatsRecord {
	now := time.Now()

	record := models.StatsRecord{
		Username:     user.Login,
		Name:         user.Name,
		AvatarURL:    user.AvatarURL,
		Followers:    user.Followers,
		Following:    user.Following,
		PublicRepos:  user.PublicRepos,
		PublicGists:  user.PublicGists,
		AccountSince: user.CreatedAt,
		TotalRepos:   len(repos),
	}

	// Forked repos count as contributions to other projects; stars and
	// forks are summed over the user's own work only.
	for _, repo := range repos {
		if repo.Fork {
			record.ContributedTo++
			continue
		}
		record.TotalStars += repo.StargazersCount
		record.TotalForks += repo.ForksCount
		if now.Sub(repo.PushedAt) <= recentActivityWindow {
			record.RecentRepoActivity++
		}
	}

	record.TopLanguages = rankLanguages(repos, languages)

	for _, ev := range events {
		switch ev.Type {
		case eventPush:
			record.TotalCommits += len(ev.Payload.Commits)
		case eventPullRequest:
			record.TotalPRs++
		case eventIssues:
			record.TotalIssues++
		}
	}

	record.CurrentStreak, record.LongestStreak = computeStreaks(events, now)

	if len(events) > 0 {
		record.LastActivity = events[0].CreatedAt
	} else {
		record.LastActivity = user.CreatedAt
	}
	record.ComputedAt = time.Now()

	return record
}

// rankLanguages sums per-repo language bytes for non-fork repos into
// percentage shares: at most five entries, descending, zero-percent
// entries dropped, ties kept in first-encountered order.
func rankLanguages(repos []models.Repo, languages map[string]map[string]int64) []models.LanguageShare {
	totals := make(map[string]int64)
	order := make([]string, 0)
	var grandTotal int64

	for _, repo := range repos {
		if repo.Fork {
			continue
		}
		for _, lang := range langKeys(languages[repo.FullName]) {
			bytes := languages[repo.FullName][lang]
			if _, seen := totals[lang]; !seen {
				order = append(order, lang)
			}
			totals[lang] += bytes
			grandTotal += bytes
		}
	}

	if grandTotal == 0 {
		return []models.LanguageShare{}
	}

	shares := make([]models.LanguageShare, 0, len(order))
	for _, lang := range order {
		pct := int(math.Round(100 * float64(totals[lang]) / float64(grandTotal)))
		if pct == 0 {
			continue
		}
		shares = append(shares, models.LanguageShare{Language: lang, Percentage: pct})
	}

	sort.SliceStable(shares, func(i, j int) bool {
		return shares[i].Percentage > shares[j].Percentage
	})
	if len(shares) > maxTopLanguages {
		shares = shares[:maxTopLanguages]
	}
	return shares
}

// langKeys returns map keys in a deterministic order so tie-breaking is
// stable across runs.
func langKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// computeStreaks walks the unique push dates newest-first. Consecutive
// dates extend a running temp streak; a gap folds the finished run into
// the longest streak and resets. The current streak is assigned inline
// whenever the walk reaches a date within one day of now, so it carries
// the temp streak as of that iteration — for sparse activity with
// several recent runs, the last qualifying date wins. That quirk is
// part of the observable contract and is pinned by tests.
func computeStreaks(events []models.Event, now time.Time) (current, longest int) {
	seen := make(map[string]time.Time)
	for _, ev := range events {
		if ev.Type != eventPush {
			continue
		}
		d := dateOf(ev.CreatedAt)
		seen[d.Format("2006-01-02")] = d
	}
	if len(seen) == 0 {
		return 0, 0
	}

	dates := make([]time.Time, 0, len(seen))
	for _, d := range seen {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].After(dates[j]) })

	today := dateOf(now)
	temp := 0
	for i, d := range dates {
		if i < len(dates)-1 {
			if daysBetween(d, dates[i+1]) == 1 {
				temp++
			} else {
				if temp+1 > longest {
					longest = temp + 1
				}
				temp = 0
			}
		}
		if daysBetween(today, d) <= 1 {
			current = temp + 1
		}
	}
	if temp+1 > longest {
		longest = temp + 1
	}
	return current, longest
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// daysBetween returns the whole-day difference between two normalized
// dates, later first.
func daysBetween(later, earlier time.Time) int {
	return int(later.Sub(earlier).Hours() / 24)
}
