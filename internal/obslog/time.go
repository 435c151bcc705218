package obslog

import "time"

func wallNowUnix() int64 {
	return time.Now().Unix()
}
