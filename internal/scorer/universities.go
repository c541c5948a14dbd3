package scorer

import "strings"

// UniversityInfo 院校信息，用于可选的院校加成
type UniversityInfo struct {
	Name  string
	Is985 bool
	Is211 bool
}

// universityTable 常见重点院校表
// 985院校同时也是211，表中只需标Is985即可由LookupUniversity补全
var universityTable = []UniversityInfo{
	{Name: "清华大学", Is985: true},
	{Name: "北京大学", Is985: true},
	{Name: "复旦大学", Is985: true},
	{Name: "上海交通大学", Is985: true},
	{Name: "浙江大学", Is985: true},
	{Name: "南京大学", Is985: true},
	{Name: "中国科学技术大学", Is985: true},
	{Name: "哈尔滨工业大学", Is985: true},
	{Name: "西安交通大学", Is985: true},
	{Name: "武汉大学", Is985: true},
	{Name: "华中科技大学", Is985: true},
	{Name: "中山大学", Is985: true},
	{Name: "四川大学", Is985: true},
	{Name: "同济大学", Is985: true},
	{Name: "南开大学", Is985: true},
	{Name: "天津大学", Is985: true},
	{Name: "北京航空航天大学", Is985: true},
	{Name: "北京理工大学", Is985: true},
	{Name: "东南大学", Is985: true},
	{Name: "厦门大学", Is985: true},
	{Name: "山东大学", Is985: true},
	{Name: "吉林大学", Is985: true},
	{Name: "中南大学", Is985: true},
	{Name: "大连理工大学", Is985: true},
	{Name: "华南理工大学", Is985: true},
	{Name: "电子科技大学", Is985: true},
	{Name: "重庆大学", Is985: true},
	{Name: "西北工业大学", Is985: true},
	{Name: "兰州大学", Is985: true},
	{Name: "东北大学", Is985: true},
	{Name: "湖南大学", Is985: true},
	{Name: "中国人民大学", Is985: true},
	{Name: "中国农业大学", Is985: true},
	{Name: "国防科技大学", Is985: true},
	{Name: "中央民族大学", Is985: true},
	{Name: "西北农林科技大学", Is985: true},
	{Name: "华东师范大学", Is985: true},
	{Name: "北京师范大学", Is985: true},
	{Name: "中国海洋大学", Is985: true},

	{Name: "北京邮电大学", Is211: true},
	{Name: "上海财经大学", Is211: true},
	{Name: "中央财经大学", Is211: true},
	{Name: "对外经济贸易大学", Is211: true},
	{Name: "北京交通大学", Is211: true},
	{Name: "北京科技大学", Is211: true},
	{Name: "华东理工大学", Is211: true},
	{Name: "南京航空航天大学", Is211: true},
	{Name: "南京理工大学", Is211: true},
	{Name: "西安电子科技大学", Is211: true},
	{Name: "武汉理工大学", Is211: true},
	{Name: "暨南大学", Is211: true},
	{Name: "苏州大学", Is211: true},
	{Name: "郑州大学", Is211: true},
	{Name: "云南大学", Is211: true},
	{Name: "上海大学", Is211: true},
	{Name: "中国政法大学", Is211: true},
	{Name: "中国传媒大学", Is211: true},
	{Name: "哈尔滨工程大学", Is211: true},
	{Name: "合肥工业大学", Is211: true},
}

var universityIndex = func() map[string]UniversityInfo {
	idx := make(map[string]UniversityInfo, len(universityTable))
	for _, u := range universityTable {
		if u.Is985 {
			u.Is211 = true
		}
		idx[u.Name] = u
	}
	return idx
}()

// LookupUniversity 按院校名称查询，支持"清华大学计算机系"这类带后缀的写法
func LookupUniversity(name string) (UniversityInfo, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return UniversityInfo{}, false
	}
	if info, ok := universityIndex[name]; ok {
		return info, true
	}
	// 前缀匹配，应对抽取结果带院系后缀的情况
	for uname, info := range universityIndex {
		if strings.HasPrefix(name, uname) {
			return info, true
		}
	}
	return UniversityInfo{}, false
}
