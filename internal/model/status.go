package model

import "fmt"

const (
	StatusPending = "pending"
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

var allowedTransitions = map[string]map[string]bool{
	"": {
		StatusPending: true,
	},
	StatusPending: {
		StatusPending: true,
		StatusSuccess: true,
		StatusFailed:  true,
	},
	StatusFailed: {
		StatusFailed:  true,
		StatusSuccess: true, // retry pass
	},
	StatusSuccess: {
		StatusSuccess: true,
	},
}

func IsKnownStatus(status string) bool {
	_, ok := allowedTransitions[status]
	return ok
}

func CanTransition(from, to string) bool {
	next, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}

func TransitionVideoStatus(video *VideoDescriptor, toStatus string) error {
	from := video.Status
	if !IsKnownStatus(toStatus) {
		return fmt.Errorf("unknown video status %q (video_id=%s)", toStatus, video.VideoID)
	}
	if !CanTransition(from, toStatus) {
		return fmt.Errorf("invalid video status transition: %q -> %q (video_id=%s)", from, toStatus, video.VideoID)
	}
	video.Status = toStatus
	return nil
}

// Recount rebuilds every derived count and the failed subset from the
// current video statuses. Videos still pending count as failed once the run
// is summarized.
func (r *RunResult) Recount() {
	r.TotalVideos = len(r.Videos)
	r.SuccessCount = 0
	r.FailedCount = 0
	failed := make([]VideoDescriptor, 0, len(r.Videos))
	for _, v := range r.Videos {
		if v.Status == StatusSuccess {
			r.SuccessCount++
			continue
		}
		r.FailedCount++
		failed = append(failed, v)
	}
	r.FailedVideos = failed
	r.ShowRetry = r.FailedCount > 0
}

// FailedIndexes returns positions in Videos that a retry pass should visit.
func (r *RunResult) FailedIndexes() []int {
	out := make([]int, 0, r.FailedCount)
	for i, v := range r.Videos {
		if v.Status != StatusSuccess {
			out = append(out, i)
		}
	}
	return out
}
