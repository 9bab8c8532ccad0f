package config

type WorkerKeyStruct struct {
	PersistDraftAnswersQueue string
}

var WorkerKey = &WorkerKeyStruct{
	PersistDraftAnswersQueue: "persist_draft_answers_queue",
}
