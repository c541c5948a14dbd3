package constants

// Redis Key 前缀和格式常量
// 使用统一的命名规范: app:{module}:{entity}:{unique_id}
const (
	// AppPrefix 是所有Redis Key的统一应用前缀
	AppPrefix = "app"

	// OCRModulePrefix OCR模块
	OCRModulePrefix = "ocr"
	// FileModulePrefix 文件模块
	FileModulePrefix = "file"
	// TemplateModulePrefix 评分模板模块
	TemplateModulePrefix = "template"

	// EntityQuota 配额计数实体
	EntityQuota = "quota"
	// EntityLock 分布式锁实体
	EntityLock = "lock"
	// EntityDedupSet 去重集合实体
	EntityDedupSet = "dedup_set"
	// EntityUsageDaily 按日使用量实体
	EntityUsageDaily = "usage_daily"
	// EntityURLCache 预签名链接缓存实体
	EntityURLCache = "url_cache"

	// KeyOCRQuotaUsed OCR配额已用计数 (STRING, INCR)
	// 格式: app:ocr:quota:used
	KeyOCRQuotaUsed = AppPrefix + ":" + OCRModulePrefix + ":" + EntityQuota + ":used"

	// KeyOCRUsageDaily 按日OCR调用计数 (STRING, INCR)
	// 格式: app:ocr:usage_daily:{yyyy-mm-dd}
	KeyOCRUsageDaily = AppPrefix + ":" + OCRModulePrefix + ":" + EntityUsageDaily + ":%s"

	// KeyFileMD5Set 文件MD5集合，用于快速去重 (SET)
	// 格式: app:file:dedup_set
	KeyFileMD5Set = AppPrefix + ":" + FileModulePrefix + ":" + EntityDedupSet

	// KeyFileLock 文件处理分布式锁 (STRING)
	// 格式: app:file:lock:{submissionUUID}
	KeyFileLock = AppPrefix + ":" + FileModulePrefix + ":" + EntityLock + ":%s"

	// KeyFileURLCache 原始文件预签名链接缓存 (STRING)
	// 格式: app:file:url_cache:{submissionUUID}
	KeyFileURLCache = AppPrefix + ":" + FileModulePrefix + ":" + EntityURLCache + ":%s"

	// KeyTemplateSeedLock 内置评分模板写入的分布式锁 (STRING)
	// 格式: app:template:lock:seed
	KeyTemplateSeedLock = AppPrefix + ":" + TemplateModulePrefix + ":" + EntityLock + ":seed"
)
