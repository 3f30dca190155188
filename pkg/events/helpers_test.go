package events_test

import "time"

var testTime = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
