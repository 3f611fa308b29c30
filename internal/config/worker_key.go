package config

type WorkerKeyStruct struct {
	PersistAlertsQueue   string
	PersistMessagesQueue string
}

var WorkerKey = &WorkerKeyStruct{
	PersistAlertsQueue:   "persist_alerts_queue",
	PersistMessagesQueue: "persist_messages_queue",
}
