package core

import (
	"connectcore/pkg/domain"
	"math"
	"sort"
	"strings"
	"time"
)

// MonthLayout formats histogram bucket keys, e.g. "Mar 25".
const MonthLayout = "Jan 06"

const (
	histogramMonths  = 6
	recentActivities = 5
)

// StatusCount is one bar of the pipeline distribution.
type StatusCount struct {
	Status Status `json:"status"`
	Count  int    `json:"count"`
}

// ActivityTypeCount is one bar of the activity type distribution.
type ActivityTypeCount struct {
	Type  domain.ActivityType `json:"type"`
	Count int                 `json:"count"`
}

// IntentLevelCount is one bar of the lead intent distribution.
type IntentLevelCount struct {
	Level IntentLevel `json:"level"`
	Count int         `json:"count"`
}

// NeedTypeCount is one bar of the lead need distribution.
type NeedTypeCount struct {
	Type  NeedType `json:"type"`
	Count int      `json:"count"`
}

// MonthCount is one bucket of a monthly histogram.
type MonthCount struct {
	Month string `json:"month"`
	Count int    `json:"count"`
}

// DashboardStats holds the dashboard KPIs and chart series.
type DashboardStats struct {
	TotalActiveConnects         int                 `json:"totalActiveConnects"`
	SuccessRate                 float64             `json:"successRate"`
	AverageDealCycleDays        int                 `json:"averageDealCycleDays"`
	TotalActivities             int                 `json:"totalActivities"`
	PipelineDistribution        []StatusCount       `json:"pipelineDistribution"`
	ActivityTypeDistribution    []ActivityTypeCount `json:"activityTypeDistribution"`
	ConnectsByMonth             []MonthCount        `json:"connectsByMonth"`
	RecentActivities            []Activity          `json:"recentActivities"`
	TotalActiveLeads            int                 `json:"totalActiveLeads"`
	TotalLeadsPotentialRevenue  float64             `json:"totalLeadsPotentialRevenue"`
	LeadsByIntentDistribution   []IntentLevelCount  `json:"leadsByIntentDistribution"`
	LeadsByNeedTypeDistribution []NeedTypeCount     `json:"leadsByNeedTypeDistribution"`
	LeadsByMonth                []MonthCount        `json:"leadsByMonth"`
}

// closedStatuses are status names (lowercase) that end a connect without a story.
var closedStatuses = map[string]struct{}{
	"no synergy": {},
	"no revert":  {},
}

// ComputeStats aggregates the dashboard statistics. now anchors the monthly
// histograms, which cover the current month and the five before it.
func ComputeStats(ds Dataset, now time.Time) DashboardStats {
	statuses := make(map[string]Status, len(ds.Statuses))
	for _, s := range ds.Statuses {
		statuses[s.ID] = s
	}
	connects := make(map[string]Connect, len(ds.Connects))
	var active []Connect
	for _, c := range ds.Connects {
		connects[c.ID] = c
		if !c.Deleted() {
			active = append(active, c)
		}
	}
	storyConnects := make(map[string]struct{}, len(ds.SuccessStories))
	for _, s := range ds.SuccessStories {
		storyConnects[s.ConnectID] = struct{}{}
	}

	stats := DashboardStats{
		TotalActiveConnects: len(active),
		TotalActivities:     len(ds.Activities),
	}

	closed := 0
	for _, c := range ds.Connects {
		_, isClosed := closedStatuses[strings.ToLower(statuses[c.StatusID].Name)]
		_, hasStory := storyConnects[c.ID]
		if isClosed || hasStory {
			closed++
		}
	}
	if closed > 0 {
		stats.SuccessRate = float64(len(ds.SuccessStories)) / float64(closed) * 100
	}

	if len(ds.SuccessStories) > 0 {
		total := 0.0
		for _, s := range ds.SuccessStories {
			c, ok := connects[s.ConnectID]
			if !ok {
				continue
			}
			total += math.Ceil(math.Abs(c.UpdatedAt.Sub(c.CreatedAt).Hours()) / 24)
		}
		stats.AverageDealCycleDays = int(math.Round(total / float64(len(ds.SuccessStories))))
	}

	statusCounts := map[string]int{}
	for _, c := range active {
		statusCounts[c.StatusID]++
	}
	for _, s := range ds.Statuses {
		if n := statusCounts[s.ID]; n > 0 {
			stats.PipelineDistribution = append(stats.PipelineDistribution, StatusCount{Status: s, Count: n})
		}
	}
	sort.SliceStable(stats.PipelineDistribution, func(i, j int) bool {
		return stats.PipelineDistribution[i].Count > stats.PipelineDistribution[j].Count
	})

	typeCounts := map[domain.ActivityType]int{}
	for _, a := range ds.Activities {
		typeCounts[a.Type]++
	}
	for _, t := range domain.ActivityTypes() {
		if n := typeCounts[t]; n > 0 {
			stats.ActivityTypeDistribution = append(stats.ActivityTypeDistribution, ActivityTypeCount{Type: t, Count: n})
		}
	}
	sort.SliceStable(stats.ActivityTypeDistribution, func(i, j int) bool {
		return stats.ActivityTypeDistribution[i].Count > stats.ActivityTypeDistribution[j].Count
	})

	start := histogramStart(now)
	connectDates := make([]time.Time, 0, len(active))
	for _, c := range active {
		connectDates = append(connectDates, c.Date)
	}
	stats.ConnectsByMonth = monthHistogram(start, connectDates)

	stats.RecentActivities = append([]Activity(nil), ds.Activities...)
	sortByDateDesc(stats.RecentActivities)
	if len(stats.RecentActivities) > recentActivities {
		stats.RecentActivities = stats.RecentActivities[:recentActivities]
	}

	intentCounts := map[string]int{}
	needCounts := map[string]int{}
	var leadDates []time.Time
	for _, l := range ds.Leads {
		if l.Deleted() {
			continue
		}
		stats.TotalActiveLeads++
		stats.TotalLeadsPotentialRevenue += l.RevenuePotential
		intentCounts[l.IntentLevelID]++
		needCounts[l.NeedTypeID]++
		leadDates = append(leadDates, l.CreatedAt)
	}
	for _, lvl := range ds.IntentLevels {
		if n := intentCounts[lvl.ID]; n > 0 {
			stats.LeadsByIntentDistribution = append(stats.LeadsByIntentDistribution, IntentLevelCount{Level: lvl, Count: n})
		}
	}
	sort.SliceStable(stats.LeadsByIntentDistribution, func(i, j int) bool {
		return stats.LeadsByIntentDistribution[i].Count > stats.LeadsByIntentDistribution[j].Count
	})
	for _, nt := range ds.NeedTypes {
		if n := needCounts[nt.ID]; n > 0 {
			stats.LeadsByNeedTypeDistribution = append(stats.LeadsByNeedTypeDistribution, NeedTypeCount{Type: nt, Count: n})
		}
	}
	sort.SliceStable(stats.LeadsByNeedTypeDistribution, func(i, j int) bool {
		return stats.LeadsByNeedTypeDistribution[i].Count > stats.LeadsByNeedTypeDistribution[j].Count
	})
	stats.LeadsByMonth = monthHistogram(start, leadDates)
	return stats
}

// histogramStart returns midnight on the first day of the month five months
// before now, in now's location.
func histogramStart(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month()-(histogramMonths-1), 1, 0, 0, 0, 0, now.Location())
}

func monthHistogram(start time.Time, dates []time.Time) []MonthCount {
	out := make([]MonthCount, histogramMonths)
	pos := make(map[string]int, histogramMonths)
	for i := range out {
		key := start.AddDate(0, i, 0).Format(MonthLayout)
		out[i] = MonthCount{Month: key}
		pos[key] = i
	}
	for _, d := range dates {
		if d.Before(start) {
			continue
		}
		if i, ok := pos[d.In(start.Location()).Format(MonthLayout)]; ok {
			out[i].Count++
		}
	}
	return out
}
