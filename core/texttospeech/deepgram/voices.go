package deepgram

type Voice string

const (
	VoiceAsteria   Voice = "aura-2-asteria-en"
	VoiceThalia    Voice = "aura-2-thalia-en"
	VoiceAndromeda Voice = "aura-2-andromeda-en"
	VoiceHelena    Voice = "aura-2-helena-en"
	VoiceApollo    Voice = "aura-2-apollo-en"
	VoiceArcas     Voice = "aura-2-arcas-en"
	VoiceOrion     Voice = "aura-2-orion-en"
	VoiceZeus      Voice = "aura-2-zeus-en"
)

const defaultVoice = VoiceThalia

func GetAvailableVoices() []Voice {
	return []Voice{
		VoiceAsteria,
		VoiceThalia,
		VoiceAndromeda,
		VoiceHelena,
		VoiceApollo,
		VoiceArcas,
		VoiceOrion,
		VoiceZeus,
	}
}
