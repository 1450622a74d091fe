package domain

// RecountFolders 基于当前邮件全集重算每个文件夹的总数和未读数。
//
// 始终全量重算而不是增量修补：增量方案一旦漏掉某个调用点就会漂移，
// 而邮件集合的规模撑得起一次线性扫描。任何改变邮件归属文件夹、
// 已读状态或存在性的操作之后都必须调用。
func RecountFolders(folders []*Folder, emails []*Email) {
	total := make(map[string]int, len(folders))
	unread := make(map[string]int, len(folders))

	for _, e := range emails {
		total[e.FolderID]++
		if !e.IsRead {
			unread[e.FolderID]++
		}
	}

	for _, f := range folders {
		f.TotalCount = total[f.ID]
		f.UnreadCount = unread[f.ID]
	}
}
