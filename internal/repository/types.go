package repository

// BusinessListFilter 查询商家列表的过滤条件
type BusinessListFilter struct {
	Page        int
	PageSize    int
	OwnerUserID uint
	Search      string
	OnlyActive  bool
}

// CardListFilter 查询集点卡列表的过滤条件
type CardListFilter struct {
	Page       int
	PageSize   int
	UserID     uint
	BusinessID uint
}
