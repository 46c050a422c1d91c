package blobstore

import "fmt"

// ResultPath returns the deterministic path a completed job's transcript is
// published to: results/result_<job_id>.txt (spec §4.7, §6).
func ResultPath(jobID string) string {
	return fmt.Sprintf("results/result_%s.txt", jobID)
}

// ModelPath returns the path a Whisper model artifact is fetched from:
// whisper-models/<model_filename> (spec §6).
func ModelPath(modelFilename string) string {
	return "whisper-models/" + modelFilename
}

// UploadPath returns the path a newly-uploaded audio file is stored at:
// uploads/<file_uuid><ext> (spec §6).
func UploadPath(fileUUID, ext string) string {
	return "uploads/" + fileUUID + ext
}
