package market

// IsRetryable 判断错误是否属于可重试的瞬时故障。
func IsRetryable(err error) bool {
	_, retry := classifyError(err)
	return retry
}
