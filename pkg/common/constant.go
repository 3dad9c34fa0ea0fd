package common

const (
	EnvKeyGoEnv string = "GO_ENV"

	EnvKeyRunIntegrationTests string = "RUN_INTEGRATION_TESTS"

	EnvKeyIOTDBType string = "IOT_DB_TYPE"
	EnvKeyIOTDbPath string = "IOT_DB_PATH"

	EnvKeyIOTHttpHostPort string = "IOT_HTTP_HOST_PORT"
	EnvKeyIOTGrpcHostPort string = "IOT_GRPC_HOST_PORT"

	EnvKeyIOTDefaultRate  string = "IOT_DEFAULT_RATE"
	EnvKeyIOTDefaultBurst string = "IOT_DEFAULT_BURST"

	EnvKeyIOTOnlineThreshold string = "IOT_ONLINE_THRESHOLD"
	EnvKeyIOTRequestTimeout  string = "IOT_REQUEST_TIMEOUT"
	EnvKeyIOTPolicyCacheTTL  string = "IOT_POLICY_CACHE_TTL"
	EnvKeyIOTMaxChartPoints  string = "IOT_MAX_CHART_POINTS"
	EnvKeyIOTCorsOrigins     string = "IOT_CORS_ORIGINS"

	EnvKeyIOTJwtSecret        string = "IOT_JWT_SECRET"
	EnvKeyIOTJwtTTL           string = "IOT_JWT_TTL"
	EnvKeyIOTOperatorUsername string = "IOT_OPERATOR_USERNAME"
	EnvKeyIOTOperatorPassword string = "IOT_OPERATOR_PASSWORD"

	EnvKeyIOTMqttBroker   string = "IOT_MQTT_BROKER"
	EnvKeyIOTMqttUsername string = "IOT_MQTT_USERNAME"
	EnvKeyIOTMqttPassword string = "IOT_MQTT_PASSWORD"

	EnvKeyIOTInfluxURL    string = "IOT_INFLUX_URL"
	EnvKeyIOTInfluxToken  string = "IOT_INFLUX_TOKEN"
	EnvKeyIOTInfluxOrg    string = "IOT_INFLUX_ORG"
	EnvKeyIOTInfluxBucket string = "IOT_INFLUX_BUCKET"

	LoggerNameIOTCore       string = "iot_core"
	LoggerNameRestfulServer string = "restful_server"
	LoggerNameGrpcServer    string = "grpc_server"
	LoggerNameMqttBridge    string = "mqtt_bridge"
	LoggerNameInfluxMirror  string = "influx_mirror"
	LoggerNameLiveHub       string = "live_hub"
	LoggerNameAuth          string = "auth"
	LoggerFieldIOTCategory  string = "category"

	LoggerCategoryIOTRegistry string = "registry"
	LoggerCategoryIOTPolicy   string = "policy"
	LoggerCategoryIOTReading  string = "reading"
	LoggerCategoryIOTIngest   string = "ingest"
	LoggerCategoryIOTQuery    string = "query"
)
