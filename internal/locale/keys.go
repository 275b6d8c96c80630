package locale

// Key identifies a catalog message.
type Key string

const (
	KeyStartChooseLang   Key = "start_choose_lang"
	KeyChooseLangPrompt  Key = "choose_lang_prompt"
	KeyStartReady        Key = "start_ready"
	KeyHelpText          Key = "help_text"
	KeySendAudioFirst    Key = "send_audio_first"
	KeySendImageFirst    Key = "send_image_first"
	KeyAudioOKNowImage   Key = "audio_ok_now_image"
	KeyImageOKNowAudio   Key = "image_ok_now_audio"
	KeyInvalidAudio      Key = "invalid_audio"
	KeyInvalidImage      Key = "invalid_image"
	KeyBuildingVideo     Key = "building_video"
	KeyDone              Key = "done"
	KeyErrorGeneric      Key = "error_generic"
	KeyChangeLangHint    Key = "change_lang_hint"
	KeyTutorialAfterLang Key = "tutorial_after_lang"
	KeySizeWarning       Key = "size_warning"
	KeyUnknownLanguage   Key = "unknown_language"
	KeyLanguageSaved     Key = "language_saved"
)

// AllKeys lists every key the catalog must define for each language.
var AllKeys = []Key{
	KeyStartChooseLang,
	KeyChooseLangPrompt,
	KeyStartReady,
	KeyHelpText,
	KeySendAudioFirst,
	KeySendImageFirst,
	KeyAudioOKNowImage,
	KeyImageOKNowAudio,
	KeyInvalidAudio,
	KeyInvalidImage,
	KeyBuildingVideo,
	KeyDone,
	KeyErrorGeneric,
	KeyChangeLangHint,
	KeyTutorialAfterLang,
	KeySizeWarning,
	KeyUnknownLanguage,
	KeyLanguageSaved,
}
