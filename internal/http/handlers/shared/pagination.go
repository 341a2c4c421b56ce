package shared

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// NormalizePagination 页码至少为 1，页大小落在 [1, 100]，缺省 20
func NormalizePagination(page, pageSize int) (int, int) {
	page = max(page, 1)
	if pageSize <= 0 {
		return page, defaultPageSize
	}
	return page, min(pageSize, maxPageSize)
}
