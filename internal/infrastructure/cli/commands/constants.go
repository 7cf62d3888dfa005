package commands

const (
	ErrConfigLoaderUnavailable   = "configuration loader not initialized"
	ErrDoctorServiceUnavailable  = "doctor service not initialized"
	ErrConsultServiceUnavailable = "consult service not initialized"
	ErrCacheStoreUnavailable     = "cache is disabled or could not be opened"
	ErrKeyRequired               = "a key path is required (e.g. cache.ttl)"

	MsgConfigurationValid       = "Configuration valid"
	MsgNoDifferencesFromDefault = "Configuration matches the defaults."
	MsgNoCachedConsultations    = "No cached consultations."
	MsgNoProvidersConfigured    = "No providers enabled for this context."
	MsgCacheCleared             = "Cache cleared."
	MsgCacheClearCancelled      = "Nothing deleted."
)
